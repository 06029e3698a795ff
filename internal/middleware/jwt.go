package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/jo-ticketing/internal/utils"
)

// Context keys written by JWTAuth.
const (
    CtxUserID = "user_id" // uint64
    CtxRole   = "role"    // string
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role into the request context.  Handlers
// read them back with UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthenticated"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            uid, role, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthenticated"})
            }
            c.Set(CtxUserID, uid)
            c.Set(CtxRole, role)
            return next(c)
        }
    }
}

// UserID returns the authenticated user id, or 0 when the request carries no
// identity.
func UserID(c echo.Context) uint64 {
    if v, ok := c.Get(CtxUserID).(uint64); ok {
        return v
    }
    return 0
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
    r, _ := c.Get(CtxRole).(string)
    return r
}
