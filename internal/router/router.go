package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/handler"
	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes.  Register and login
// are public; logout and /v1/me need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, v middleware.TokenVerifier, cache *middleware.ResponseCache) {
	g := e.Group("/v1/auth")
	// A new account must show up in cached user lists.
	g.POST("/register", a.Register, cache.InvalidateOnSuccess())
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout, middleware.JWTAuth(v))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(v))
}

// RegisterUsers registers the protected profile routes under /v1/users.
// Reads are cached per caller; successful writes invalidate the cache.  The
// cache runs last in each chain so authorization is never skipped on a hit.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, v middleware.TokenVerifier, cache *middleware.ResponseCache) {
	g := e.Group("/v1/users", middleware.JWTAuth(v))
	cached := cache.Middleware()

	g.GET("", u.List, middleware.RequireRole(model.RoleAdmin, model.RoleStaff), cached)
	g.GET("/:email", u.GetByEmail, cached)
	g.GET("/id/:id", u.GetByID, cached)
	g.PUT("/:email", u.Update, cached)
	g.PUT("/changepassword/:email", u.ChangePassword, cached)
	g.POST("/:email/photo", u.UploadPhoto, cached)
	g.DELETE("/:id", u.Delete, cached)
}
