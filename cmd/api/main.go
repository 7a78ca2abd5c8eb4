package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/drivesmart/configs"
	"github.com/anjiri1684/drivesmart/database"
	"github.com/anjiri1684/drivesmart/handlers"
	"github.com/anjiri1684/drivesmart/jobs"
	"github.com/anjiri1684/drivesmart/routes"
	"github.com/anjiri1684/drivesmart/services"
	"github.com/anjiri1684/drivesmart/websocket"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("🔥 JWT_SECRET is required")
	}

	db := database.ConnectDB(cfg)
	database.Migrate(db)
	database.SeedAdmin(db, cfg)
	if cfg.SeedDemoData {
		database.SeedDemoData(db)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	questions := services.NewQuestionStore(db)
	users := services.NewUserDirectory(db)
	access := services.NewAccessService(db)
	images := services.NewImageResolver(cfg.CloudinaryURL, cfg.ImageBasePath)
	sessions := services.NewSessionService(db, services.SessionDeps{
		Questions:       questions,
		Users:           users,
		Access:          access,
		Images:          images,
		Events:          hub,
		DurationMinutes: cfg.SessionDurationMinutes,
	})
	certificates := services.NewCertificateService(sessions, users, services.ChromePDFRenderer{})

	c := cron.New()
	if _, err := jobs.ScheduleExpiry(c, cfg.ExpirySweepSpec, jobs.ExpiryJob{Sessions: sessions}); err != nil {
		log.Fatalf("🔥 Invalid EXPIRY_SWEEP_SPEC %q: %v", cfg.ExpirySweepSpec, err)
	}
	c.Start()
	log.Println("✅ Cron job for session expiry scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "DriveSmart",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		JSONEncoder:       sonic.Marshal,
		JSONDecoder:       sonic.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Something went wrong, please try again later"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				message = fe.Message
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Disposition",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   cfg.LogTimeZone,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to DriveSmart API",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	routes.TestRoutes(app, handlers.NewTestHandler(sessions, questions, certificates), cfg.JWTSecret)
	routes.AccessRoutes(app, handlers.NewAccessHandler(access), cfg.JWTSecret)
	routes.EventRoutes(app, hub, cfg.JWTSecret)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		<-c.Stop().Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("✅ Server is running on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
