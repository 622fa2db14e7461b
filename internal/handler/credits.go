package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/store"
)

const defaultStatementSize = 50

// CreditHandler shows the caller's balance and ledger.
type CreditHandler struct {
	Store store.Reader
}

func NewCreditHandler(r store.Reader) *CreditHandler {
	if r == nil {
		panic("nil reader passed to NewCreditHandler")
	}
	return &CreditHandler{Store: r}
}

// Statement handles GET /v1/credits?limit=.
func (h *CreditHandler) Statement(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	limit := queryInt(c, "limit", defaultStatementSize)
	if limit <= 0 || limit > 500 {
		limit = defaultStatementSize
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := ledger.StatementOf(ctx, h.Store, uid, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
