package handler // declare the package name; contains HTTP handlers

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health is a liveness endpoint used by load balancers and monitoring
// systems.  It returns a plain text "ok" with an HTTP 200 status code and
// touches no dependency.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
