package middleware

import (
	"crypto/subtle"

	"able-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RequireAPIKey guards internal endpoints with a shared key passed in the
// X-Api-Key header. An empty configured key rejects everything.
func RequireAPIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get("X-Api-Key")
		if key == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}
