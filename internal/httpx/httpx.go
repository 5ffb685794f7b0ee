// Package httpx holds small fiber helpers shared by the handlers.
package httpx

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Error writes the standard error envelope.
func Error(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// ReadJSON decodes the request body into dst. An empty body leaves dst
// untouched.
func ReadJSON(c fiber.Ctx, dst any) error {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// QueryInt returns an integer query parameter or the fallback when it is
// missing or malformed.
func QueryInt(c fiber.Ctx, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// QueryString returns a trimmed query parameter or the fallback.
func QueryString(c fiber.Ctx, key, fallback string) string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return v
	}
	return fallback
}

// RawQuery returns the request's query string without the leading "?".
func RawQuery(c fiber.Ctx) string {
	return string(c.RequestCtx().URI().QueryString())
}
