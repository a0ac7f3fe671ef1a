package middleware

// identity.go defines helpers shared across middleware and handlers for
// reading the verified claims that JWTAuth attached to a request.

import (
    "context"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/user-account-service/internal/auth"
)

const claimsKey = "claims"

type claimsCtxKey struct{}

// Claims returns the verified claims of the request, nil when JWTAuth did
// not run or rejected the request.
func Claims(c echo.Context) *auth.Claims {
    if cl, ok := c.Get(claimsKey).(*auth.Claims); ok {
        return cl
    }
    return ClaimsFromContext(c.Request().Context())
}

// ClaimsFromContext reads the claims from a request context.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
    cl, _ := ctx.Value(claimsCtxKey{}).(*auth.Claims)
    return cl
}

// Actor converts the request claims into the caller identity used by the
// services.  An unauthenticated request yields the zero Actor.
func Actor(c echo.Context) auth.Actor {
    cl := Claims(c)
    if cl == nil {
        return auth.Actor{}
    }
    return auth.Actor{ID: cl.Subject, Role: cl.Role}
}

// userID extracts a user identifier for cache keys, "anon" when no user is
// authenticated.
func userID(c echo.Context) string {
    if cl := Claims(c); cl != nil && cl.Subject != "" {
        return cl.Subject
    }
    return "anon"
}
