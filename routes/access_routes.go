package routes

import (
	"github.com/anjiri1684/drivesmart/handlers"
	"github.com/anjiri1684/drivesmart/middleware"
	"github.com/gofiber/fiber/v2"
)

func AccessRoutes(app *fiber.App, h *handlers.AccessHandler, jwtSecret string) {
	api := app.Group("/api/v1")
	api.Get("/packages", h.ListPackages)
	api.Get("/packages/:packageId", h.GetPackage)

	access := api.Group("/access", middleware.Protected(jwtSecret))
	access.Get("/me", h.MyAccess)
	access.Get("/:packageId/check", h.CheckAccess)

	admin := api.Group("/admin/access", middleware.Protected(jwtSecret), middleware.AdminRequired())
	admin.Post("/grant", h.GrantAccess)
}
