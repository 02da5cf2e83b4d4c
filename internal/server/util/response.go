package util

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope returned by every graph endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Data    any    `json:"data,omitempty"`
}

func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Response{Success: false, Message: message, Status: status})
}

func OK(c echo.Context, message string, data any) error {
	return Respond(c, http.StatusOK, message, data)
}

func Respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Response{Success: true, Message: message, Status: status, Data: data})
}

// StartNDJSON commits a streaming newline-delimited JSON response and
// returns a function that writes and flushes one line.
func StartNDJSON(c echo.Context) func(v any) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Response())
	return func(v any) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		c.Response().Flush()
		return nil
	}
}
