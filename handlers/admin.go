package handlers

import (
	"dice-gift-bot/middleware"
	"dice-gift-bot/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes mounts the admin API. Health is public; everything
// else sits behind the admin token.
func SetupAdminRoutes(app *fiber.App, statsService *services.StatsService) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	admin := app.Group("/s/admin", middleware.AdminAuthMiddleware())

	admin.Get("/stats", statsService.GetStats)
	admin.Get("/accounts/:id/balance", statsService.GetAccountBalance)
	admin.Put("/accounts/:id/balance", statsService.SetAccountBalance)
	admin.Put("/accounts/:id/ban", statsService.SetAccountBan)
	admin.Post("/pool/topup", statsService.TopUpPool)
}
