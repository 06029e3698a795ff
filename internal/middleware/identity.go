package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// identityKey is the user part of rate-limit keys: the numeric user id when
// JWTAuth ran before, "anon" otherwise.
func identityKey(c echo.Context) string {
    if uid := UserID(c); uid != 0 {
        return strconv.FormatUint(uid, 10)
    }
    return "anon"
}
