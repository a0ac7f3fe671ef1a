package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/user-account-service/internal/account"
	"github.com/iliyamo/user-account-service/internal/auth"
	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/model"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth     *auth.Service
	Accounts *account.Service
	Log      *zap.Logger
}

func NewAuthHandler(a *auth.Service, acc *account.Service, log *zap.Logger) *AuthHandler {
	if a == nil || acc == nil {
		panic("nil service passed to NewAuthHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Auth: a, Accounts: acc, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Repassword string `json:"repassword"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResp struct {
	Message string         `json:"message"`
	User    model.Profile  `json:"user"`
	Tokens  auth.TokenPair `json:"tokens"`
}

// Register creates a regular account.  It does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Accounts.Register(c.Request().Context(), account.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Repassword: req.Repassword,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "registration successful",
		"data":    u.Profile(),
	})
}

// Login verifies credentials and returns a new token pair.  Any previous
// session of the user is replaced.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	res, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, authResp{
		Message: "login successful",
		User:    res.User.Profile(),
		Tokens:  res.Tokens,
	})
}

// Logout clears the caller's stored refresh token (protected).
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.Auth.Logout(c.Request().Context(), middleware.Actor(c).ID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logout successful"})
}

// Me returns the verified claims of the caller and whether a refresh token
// is still stored for it.  The access token outlives a logout, so
// session_active may be false here.
func (h *AuthHandler) Me(c echo.Context) error {
	a := middleware.Actor(c)
	if a.ID == "" {
		return writeError(c, h.Log, auth.ErrUnauthorized)
	}
	active, err := h.Auth.SessionActive(c.Request().Context(), a.ID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":        a.ID,
		"role":           a.Role,
		"session_active": active,
	})
}
