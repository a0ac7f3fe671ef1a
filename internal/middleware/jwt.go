package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/user-account-service/internal/auth"
)

// TokenVerifier is the part of auth.TokenService the middleware needs.
type TokenVerifier interface {
    VerifyAccess(raw string) (*auth.Claims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// attaches the verified claims to the echo context and to the request
// context.  Every failure answers 401 with the same body, so expired,
// malformed and forged tokens cannot be told apart by the caller.  The
// verifier performs no I/O.
func JWTAuth(v TokenVerifier) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := v.VerifyAccess(raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            c.Set(claimsKey, claims)
            req := c.Request()
            c.SetRequest(req.WithContext(context.WithValue(req.Context(), claimsCtxKey{}, claims)))
            return next(c)
        }
    }
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
    scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
    if !found || !strings.EqualFold(scheme, "Bearer") {
        return "", false
    }
    token = strings.TrimSpace(token)
    return token, token != ""
}
