package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator plugs go-playground/validator into echo.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// jsonName reports fields by their JSON name.
func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// bind decodes the body into req and validates it. The returned message
// is safe to show to clients.
func bind(c echo.Context, req interface{}) (string, bool) {
	if err := c.Bind(req); err != nil {
		return "invalid body", false
	}
	if err := c.Validate(req); err != nil {
		return describe(err), false
	}
	return "", true
}

func describe(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return "invalid body"
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
