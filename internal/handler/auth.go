package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/account"
	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
	"github.com/ecoride/carpool/internal/utils"
)

// AuthHandler issues access and refresh tokens. Access tokens are JWTs
// carrying the user id and roles; refresh tokens are opaque and only
// their hash is stored.
type AuthHandler struct {
	Cfg      config.Config
	Accounts *account.Service
	Tokens   store.TokenStore
	Now      func() time.Time
}

func NewAuthHandler(cfg config.Config, accounts *account.Service, tokens store.TokenStore) *AuthHandler {
	if accounts == nil || tokens == nil {
		panic("nil dependency passed to NewAuthHandler")
	}
	return &AuthHandler{Cfg: cfg, Accounts: accounts, Tokens: tokens, Now: time.Now}
}

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=190"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Pseudo   string `json:"pseudo" validate:"max=64"`
	Driver   bool   `json:"driver"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    userResp  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// issue signs an access token and stores a fresh refresh token for u.
func (h *AuthHandler) issue(c echo.Context, u *model.User) (authResp, error) {
	now := h.Now()
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Roles, time.Duration(h.Cfg.AccessTTLMin)*time.Minute, now)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(time.Duration(h.Cfg.RefreshTTLDays)*24*time.Hour, now)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(c.Request().Context(), u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    toUser(u, true),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.Register(ctx, account.Registration{
		Email:    req.Email,
		Password: req.Password,
		Pseudo:   req.Pseudo,
		Driver:   req.Driver,
	})
	if err != nil {
		return fail(c, err)
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /v1/auth/refresh. The presented token is revoked
// and replaced by a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash, h.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return fail(c, err)
	}
	if err := h.Tokens.RevokeRefresh(ctx, hash); err != nil {
		return fail(c, err)
	}
	u, err := h.Accounts.Get(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	if u.Status == model.UserBanned {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout handles POST /v1/auth/logout. With a refresh token in the body
// only that token is revoked; otherwise every token of the caller is.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		err = h.Tokens.RevokeRefresh(ctx, utils.HashRefreshRaw(raw))
	} else {
		err = h.Tokens.RevokeAllRefresh(ctx, uid)
	}
	if err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/me.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.Get(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toUser(u, true))
}
