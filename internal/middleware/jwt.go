// Package middleware holds the Echo middleware of the booking API:
// bearer token authentication, role checks and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyUserID = "user_id"
	KeyRole   = "role"
)

// JWTAuth validates a Bearer access token and stores its subject and role
// under KeyUserID (uint64) and KeyRole (string).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			role := strings.ToUpper(claims.Role)
			if role == "" {
				role = model.RoleGuest
			}
			c.Set(KeyUserID, claims.UserID)
			c.Set(KeyRole, role)
			return next(c)
		}
	}
}

// Actor returns the authenticated caller. ok is false on routes that do
// not run JWTAuth.
func Actor(c echo.Context) (model.Actor, bool) {
	id, ok := c.Get(KeyUserID).(uint64)
	if !ok || id == 0 {
		return model.Actor{}, false
	}
	role, _ := c.Get(KeyRole).(string)
	return model.Actor{UserID: id, Role: role}, true
}
