package main

// @title Go WhatsApp Gateway REST API
// @version 1.0.0
// @description WhatsApp gateway with text/image sending, per-chat consent tracking and delivery acknowledgement persistence

// @host localhost:3000
// @BasePath /

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/env"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/log"
	"github.com/geniality/go-whatsapp-gateway-rest-api/pkg/router"
	pkgWhatsApp "github.com/geniality/go-whatsapp-gateway-rest-api/pkg/whatsapp"

	"github.com/geniality/go-whatsapp-gateway-rest-api/internal"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/consent"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/device"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/events"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/ledger"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/message"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/session"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/status"
	"github.com/geniality/go-whatsapp-gateway-rest-api/internal/store"
)

type Server struct {
	Address string
	Port    string
}

func main() {
	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler: router.HttpErrorHandler,
		BodyLimit:    router.BodyLimitBytes(),
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/qr.png")
		},
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router Cache
	app.Use(router.HttpCacheInMemory(router.CacheTTLSeconds))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Router Default Handler
	app.Get("/favicon.ico", router.ResponseNoContent)

	// Datastore configuration is shared between the message store and the
	// WhatsApp session store.
	datastoreDriver := env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_TYPE", "pgx")
	datastoreDSN := env.MustGetEnvString("WHATSAPP_DATASTORE_URI")
	qrImagePath := env.GetEnvStringOrDefault("WHATSAPP_QR_IMAGE_PATH", "qr.png")

	db, err := store.Open(datastoreDriver, datastoreDSN)
	if err != nil {
		log.Print(nil).Fatal("Failed to open message store: " + err.Error())
	}
	log.Print(nil).Info("database is ok")

	// Event wiring: the transport publishes gateway events; the tracker,
	// consent workflow and delivery ledger subscribe.
	dispatcher := events.NewDispatcher()

	sessions := session.NewTracker(qrImagePath)
	sessions.Bind(dispatcher)

	wa, err := pkgWhatsApp.NewClient(context.Background(), pkgWhatsApp.Config{
		DatastoreDriver: datastoreDriver,
		DatastoreDSN:    datastoreDSN,
		ProxyURL:        env.GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", ""),
		QRImagePath:     qrImagePath,
	}, dispatcher)
	if err != nil {
		log.Print(nil).Fatal("Failed to initialize WhatsApp client: " + err.Error())
	}

	consent.NewWorkflow(db, wa).Bind(dispatcher)
	ledger.New(db).Bind(dispatcher)

	// Load Internal Routes
	internal.Routes(app, &internal.Controllers{
		Message: message.NewHandler(sessions, wa, db),
		Consent: consent.NewHandler(sessions, wa, db),
		Status:  status.NewHandler(sessions),
		Device:  device.NewHandler(wa),
	})

	// Running Startup Tasks
	internal.Startup(wa)

	// Running Routines Tasks
	internal.Routines(c, wa, sessions, dispatcher)

	// Get Server Configuration with defaults
	var serverConfig Server

	// SERVER_ADDRESS: default "0.0.0.0" (all interfaces)
	serverConfig.Address = env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0")

	// SERVER_PORT: default 3000; plain PORT is honored for compatibility
	serverConfig.Port = env.GetEnvStringOrDefault("SERVER_PORT",
		env.GetEnvStringOrDefault("PORT", "3000"))

	// Start Server
	go func() {
		if err := app.Listen(serverConfig.Address + ":" + serverConfig.Port); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigShutdown

	// Wait 5 Seconds Before Graceful Shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Try To Shutdown Server
	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).Error(err.Error())
	}

	// Stop Background Tasks and Close Collaborators
	c.Stop()
	wa.Disconnect()
	if err := db.Close(); err != nil {
		log.Print(nil).Error(err.Error())
	}
}
