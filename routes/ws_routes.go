package routes

import (
	"github.com/anjiri1684/drivesmart/handlers"
	"github.com/anjiri1684/drivesmart/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func EventRoutes(app *fiber.App, hub *websocket.Hub, jwtSecret string) {
	app.Use("/api/v1/ws", handlers.UpgradeRequired)
	app.Get("/api/v1/ws", websocketcontrib.New(handlers.ServeEvents(hub, jwtSecret)))
}
