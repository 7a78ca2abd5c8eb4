package routes

import (
	"github.com/anjiri1684/drivesmart/handlers"
	"github.com/anjiri1684/drivesmart/middleware"
	"github.com/gofiber/fiber/v2"
)

func TestRoutes(app *fiber.App, h *handlers.TestHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	tests := api.Group("/tests", middleware.Protected(jwtSecret))
	tests.Get("/topics", h.ListTopics)
	tests.Get("/history", h.GetHistory)
	tests.Post("/start", h.StartTest)
	tests.Post("/submit", h.SubmitTest)
	tests.Get("/:sessionId/result", h.GetResult)
	tests.Get("/:sessionId/certificate", h.DownloadCertificate)
	tests.Delete("/:sessionId/abandon", h.AbandonTest)
}
