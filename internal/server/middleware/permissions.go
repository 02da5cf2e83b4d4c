package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return IsAdmin(user) || slices.Contains(user.Permissions, permission)
}

func HasAnyPermission(user *AppUser, permissions ...string) bool {
	return slices.ContainsFunc(permissions, func(p string) bool {
		return HasPermission(user, p)
	})
}

func IsAdmin(user *AppUser) bool {
	if user == nil {
		return false
	}
	return user.Role == "admin"
}

func forbidden(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, map[string]any{
		"success": false,
		"message": message,
		"status":  http.StatusForbidden,
	})
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return unauthorized(c, "Unauthorized")
			}

			if !HasPermission(user, permission) {
				return forbidden(c, "Forbidden: missing permission "+permission)
			}

			return next(c)
		}
	}
}

func RequireAnyPermission(permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return unauthorized(c, "Unauthorized")
			}

			if !HasAnyPermission(user, permissions...) {
				return forbidden(c, "Forbidden: missing required permission")
			}

			return next(c)
		}
	}
}
