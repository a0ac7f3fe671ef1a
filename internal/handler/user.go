package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/user-account-service/internal/account"
	"github.com/iliyamo/user-account-service/internal/auth"
	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/model"
)

// UserHandler serves the protected profile endpoints.
type UserHandler struct {
	Auth     *auth.Service
	Accounts *account.Service
	Log      *zap.Logger
}

func NewUserHandler(a *auth.Service, acc *account.Service, log *zap.Logger) *UserHandler {
	if a == nil || acc == nil {
		panic("nil service passed to NewUserHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{Auth: a, Accounts: acc, Log: log}
}

type updateUserReq struct {
	Name string `json:"name"`
}

type changePasswordReq struct {
	OldPassword        string `json:"oldPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// List returns all users.
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.Accounts.List(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]model.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// emailParam decodes the :email path segment.  Echo matches on the raw path
// when the request escapes characters, so "a%40x.com" arrives undecoded.
func emailParam(c echo.Context) (string, bool) {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil || strings.TrimSpace(email) == "" {
		return "", false
	}
	return email, true
}

// GetByEmail returns one profile by email.
func (h *UserHandler) GetByEmail(c echo.Context) error {
	email, ok := emailParam(c)
	if !ok {
		return badRequest(c, "invalid email")
	}
	u, err := h.Accounts.ByEmail(c.Request().Context(), email)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": u.Profile()})
}

// GetByID returns one profile by id.
func (h *UserHandler) GetByID(c echo.Context) error {
	u, err := h.Accounts.ByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": u.Profile()})
}

// Update renames the user identified by email.
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Name == "" {
		return badRequest(c, "name field is required")
	}
	email, ok := emailParam(c)
	if !ok {
		return badRequest(c, "invalid email")
	}
	u, err := h.Accounts.UpdateName(c.Request().Context(), middleware.Actor(c), email, req.Name)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "user updated successfully",
		"data":    u.Profile(),
	})
}

// ChangePassword rotates the password and ends the user's session.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	email, ok := emailParam(c)
	if !ok {
		return badRequest(c, "invalid email")
	}
	actor := middleware.Actor(c)
	err := h.Auth.ChangePassword(c.Request().Context(), auth.ChangePasswordInput{
		Email:              email,
		OldPassword:        req.OldPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
		Actor:              &actor,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated successfully"})
}

// UploadPhoto stores the multipart "image" field as the profile photo.
func (h *UserHandler) UploadPhoto(c echo.Context) error {
	email, ok := emailParam(c)
	if !ok {
		return badRequest(c, "invalid email")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "image file is unreadable")
	}
	defer f.Close()

	imageURL, err := h.Accounts.UploadPhoto(c.Request().Context(), middleware.Actor(c), email, account.Photo{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "profile photo uploaded successfully",
		"image_url": imageURL,
	})
}

// Delete removes the user identified by id.
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.Accounts.Delete(c.Request().Context(), middleware.Actor(c), c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted successfully"})
}
