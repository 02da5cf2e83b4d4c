package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	PermExtract = "graph.extract"
	PermDelete  = "graph.delete"
)

var allPermissions = []string{
	PermExtract,
	PermDelete,
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]any{
		"success": false,
		"message": message,
		"status":  http.StatusUnauthorized,
	})
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return unauthorized(c, "Unauthorized")
		}
		token = strings.TrimSpace(token)

		ac := c.(*AppContext)
		app := ac.App

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterUserID != 0 && app.MasterUserRole != "" && token == app.MasterAPIKey {
			ac.User = &AppUser{
				UserID:      app.MasterUserID,
				Role:        app.MasterUserRole,
				Permissions: allPermissions,
			}
			return next(c)
		}

		parsed, err := jwt.Parse(token, app.keyfunc, jwt.WithValidMethods([]string{"RS256", "ES256", "EdDSA", "HS256"}))
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Unauthorized")
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Unauthorized")
		}

		user, err := userFromClaims(claims)
		if err != nil {
			return unauthorized(c, "Invalid user ID")
		}
		ac.User = user

		return next(c)
	}
}

// keyfunc selects the verification key: HMAC tokens use the shared secret,
// everything else the JWKS set.
func (a *App) keyfunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); ok {
		if len(a.AuthSecret) == 0 {
			return nil, errors.New("hmac tokens are not accepted")
		}
		return a.AuthSecret, nil
	}
	if a.Key == nil {
		return nil, errors.New("no jwks configured")
	}
	return a.Key.Keyfunc(t)
}

func userFromClaims(claims jwt.MapClaims) (*AppUser, error) {
	var userID int64
	switch id := claims["id"].(type) {
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, err
		}
		userID = parsed
	case float64:
		userID = int64(id)
	default:
		return nil, errors.New("missing id claim")
	}

	role := "user"
	if roleClaim, ok := claims["role"].(string); ok {
		role = roleClaim
	}

	var permissions []string
	if permsClaim, ok := claims["permissions"].([]any); ok {
		for _, p := range permsClaim {
			if pStr, ok := p.(string); ok {
				permissions = append(permissions, pStr)
			}
		}
	}

	if role == "admin" {
		permissions = allPermissions
	}

	return &AppUser{
		UserID:      userID,
		Role:        role,
		Permissions: permissions,
	}, nil
}
