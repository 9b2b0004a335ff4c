package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/dyana-web/internal/adapter/account"
	"github.com/arturoeanton/dyana-web/internal/adapter/astro"
	"github.com/arturoeanton/dyana-web/internal/adapter/store"
	"github.com/arturoeanton/dyana-web/internal/handler"
	"github.com/arturoeanton/dyana-web/internal/middleware"
	"github.com/arturoeanton/dyana-web/internal/service"
	"github.com/arturoeanton/dyana-web/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("🚀 Starting Dyana BFF",
		"port", cfg.Port,
		"astro_api", cfg.AstroBaseURL,
		"auth_api", cfg.AuthBaseURL,
		"engine", cfg.AstroEngine,
		"audit_db", cfg.AuditEnabled(),
	)

	// ── Audit store (optional) ───────────────────────────────────────────
	var auditWriter middleware.AuditWriter = middleware.LogAuditWriter{}
	var pgStore *store.PostgresStore
	if cfg.AuditEnabled() {
		pgStore, err = store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = pgStore.EnsureSchema(ctx)
		cancel()
		if err != nil {
			slog.Error("failed to prepare audit schema", "error", err)
			os.Exit(1)
		}
		auditWriter = pgStore
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	astroClient := astro.NewClient(cfg.AstroBaseURL, cfg.AstroTimeout)
	accountClient := account.NewClient(account.Config{
		BaseURL:     cfg.AuthBaseURL,
		CreditsPath: cfg.CreditsPath,
		GuestPath:   cfg.GuestPath,
	}, 15*time.Second)

	// ── Services ─────────────────────────────────────────────────────────
	proxyService := service.NewProxyService(astroClient, cfg.AstroEngine)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AstroTimeout + 10*time.Second,
		ErrorHandler: handler.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Token"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	app.Use(middleware.IdentityMiddleware())
	app.Use(middleware.AuditMiddleware(auditWriter))

	api := app.Group("/api")

	// Health check
	api.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"app":    cfg.AppName,
			"engine": cfg.AstroEngine,
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	handler.NewProxyHandler(proxyService).Register(api)
	handler.NewCreditsHandler(accountClient).Register(api)

	if pgStore != nil && cfg.AdminToken != "" {
		handler.NewAuditHandler(pgStore, cfg.AdminToken).Register(api)
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
