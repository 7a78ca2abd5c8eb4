package handlers

import (
	"log"

	"github.com/anjiri1684/drivesmart/middleware"
	"github.com/anjiri1684/drivesmart/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// UpgradeRequired rejects plain HTTP requests on the websocket endpoint.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocketcontrib.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ServeEvents authenticates with the first frame, then keeps the connection
// registered on the hub until the client goes away.
func ServeEvents(hub *websocket.Hub, secret string) func(*websocketcontrib.Conn) {
	return func(c *websocketcontrib.Conn) {
		var auth authMessage
		if err := c.ReadJSON(&auth); err != nil || auth.Type != "auth" {
			log.Printf("WebSocket auth failed: invalid or missing auth message, error: %v", err)
			_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
			c.Close()
			return
		}

		userID, err := middleware.ParseToken(auth.Token, secret)
		if err != nil {
			log.Printf("WebSocket auth failed: invalid token, error: %v", err)
			_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
			c.Close()
			return
		}

		// the hub owns writes once the client is registered
		if err := c.WriteJSON(fiber.Map{"type": "auth.ok"}); err != nil {
			c.Close()
			return
		}
		client := &websocket.Client{UserID: userID, Conn: c}
		hub.Register(client)
		defer func() {
			hub.Unregister(client)
			c.Close()
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseAbnormalClosure) {
					log.Printf("WebSocket closed for client %s: %v", userID, err)
				} else {
					log.Printf("WebSocket read error for client %s: %v", userID, err)
				}
				return
			}
		}
	}
}
