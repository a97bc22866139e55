package middleware

import (
	"crypto/subtle"
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AdminAuthMiddleware guards the admin API with a static bearer token.
// A bare token without the Bearer prefix is accepted too.
func AdminAuthMiddleware() fiber.Handler {
	expected := os.Getenv("ADMIN_API_TOKEN")
	if expected == "" {
		log.Fatal("❌ ADMIN_API_TOKEN is not set, admin API cannot authenticate callers")
	}

	return func(c *fiber.Ctx) error {
		presented := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if presented == "" {
			log.Printf("🚫 [ADMIN_AUTH] missing credentials for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin token missing",
			})
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
			log.Printf("🚫 [ADMIN_AUTH] invalid token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid admin token",
			})
		}

		return c.Next()
	}
}
