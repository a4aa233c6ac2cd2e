package router

import (
	"context"
	"time"

	settlesvc "able-backend/internal/application/settlement"
	"able-backend/internal/config"
	"able-backend/internal/gateway"
	"able-backend/internal/infrastructure/database"
	payhandler "able-backend/internal/interfaces/handlers/payments"
	settlehandler "able-backend/internal/interfaces/handlers/settlement"
	"able-backend/internal/middleware"
	"able-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. The webhook is mounted before any body parsing so the raw
// payload survives for signature verification.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	// Webhook and settlement routes need the database; without it only the
	// health endpoint is served.
	if db != nil {
		stripeWebhook := &payhandler.WebhookHandler{
			DB:            db,
			Recon:         &store.GormReconciliationStore{DB: db},
			WebhookSecret: cfg.StripeWebhookSecret,
		}
		app.Post("/api/v1/stripe/webhook", stripeWebhook.HandleWebhook)
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	app.Get("/health/json", healthJSON(db, rdb))

	if db != nil {
		svc := &settlesvc.Service{
			Gigs:     &store.GormGigStore{DB: db},
			Payments: &store.GormPaymentStore{DB: db},
			Recon:    &store.GormReconciliationStore{DB: db},
			Gateway:  gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.Currency),
		}
		if rdb != nil {
			svc.Locks = &settlesvc.LockManager{Rdb: rdb, TTL: 30 * time.Second}
		}
		handlers := &settlehandler.Handlers{Service: svc}

		api := app.Group("/api/v1/settlement", middleware.RequireAPIKey(cfg.SettlementAPIKey))
		api.Post("/gigs/:id/settle", handlers.SettleGig)
		api.Post("/gigs/:id/finalize", handlers.FinalizeGig)
		api.Post("/gigs/:id/tip", handlers.PayTip)
		api.Get("/reconciliation", handlers.ListReconciliation)
	}

	return app, db, rdb, nil
}

func healthJSON(db *gorm.DB, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps := fiber.Map{}
		status := "ok"

		if db != nil {
			deps["database"] = "up"
			if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
				deps["database"] = "down"
				status = "degraded"
			}
		} else {
			deps["database"] = "not_configured"
		}

		if rdb != nil {
			deps["redis"] = "up"
			if err := rdb.Ping(context.Background()).Err(); err != nil {
				deps["redis"] = "down"
				status = "degraded"
			}
		} else {
			deps["redis"] = "not_configured"
		}

		return c.JSON(fiber.Map{
			"service":      "able-settlement-api",
			"status":       status,
			"dependencies": deps,
		})
	}
}
