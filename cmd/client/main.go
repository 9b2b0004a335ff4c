// Command client runs a headless Dyana session: it mounts the navbar
// reconciler against the local client store, optionally records a
// conversion event, and prints the displayed navbar tuple. With -serve it
// stays up and exposes the session to page scripts over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arturoeanton/dyana-web/internal/adapter/account"
	"github.com/arturoeanton/dyana-web/internal/adapter/analytics"
	"github.com/arturoeanton/dyana-web/internal/adapter/clientstore"
	"github.com/arturoeanton/dyana-web/internal/domain"
	"github.com/arturoeanton/dyana-web/internal/handler"
	"github.com/arturoeanton/dyana-web/internal/readiness"
	"github.com/arturoeanton/dyana-web/internal/service"
	"github.com/arturoeanton/dyana-web/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
)

type options struct {
	dbPath     string
	userToken  string
	logout     bool
	newSession bool
	consent    string
	event      string
	resumeTo   string
	serve      string
	wait       time.Duration
}

func parseFlags(cfg *config.Config) options {
	var o options
	flag.StringVar(&o.dbPath, "db", cfg.ClientDBPath, "client store path")
	flag.StringVar(&o.userToken, "token", "", "store a user token (as after login)")
	flag.BoolVar(&o.logout, "logout", false, "log out after mounting")
	flag.BoolVar(&o.newSession, "new-session", false, "wipe session-scoped state before mounting")
	flag.StringVar(&o.consent, "consent", "", "record cookie consent: granted or denied")
	flag.StringVar(&o.event, "event", "", "enqueue a conversion event")
	flag.StringVar(&o.resumeTo, "resume", "", "save a resume target path (with optional ?query)")
	flag.StringVar(&o.serve, "serve", "", "serve the session API on this address, e.g. 127.0.0.1:3002")
	flag.DurationVar(&o.wait, "wait", 10*time.Second, "how long to wait for the first navbar state")
	flag.Parse()
	return o
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	opts := parseFlags(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		slog.Error("client failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	// ── Client store ─────────────────────────────────────────────────────
	store, err := clientstore.Open(ctx, opts.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.newSession {
		if err := store.ClearSession(ctx); err != nil {
			return err
		}
	}
	if err := applyStoreFlags(ctx, store, opts); err != nil {
		return err
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	accountClient := account.NewClient(account.Config{
		BaseURL:     cfg.AuthBaseURL,
		CreditsPath: cfg.CreditsPath,
		GuestPath:   cfg.GuestPath,
	}, 15*time.Second)
	tokens := clientstore.NewTokenStore(store, accountClient)
	if opts.userToken != "" {
		if err := tokens.SetUserToken(ctx, opts.userToken); err != nil {
			return err
		}
	}

	sink := analytics.NewGA4Sink(analytics.GA4Config{
		Endpoint:      cfg.GAEndpoint,
		MeasurementID: cfg.GAMeasurementID,
		APISecret:     cfg.GAAPISecret,
	}, store)

	// ── Services ─────────────────────────────────────────────────────────
	reconciler := service.NewNavbarReconciler(tokens, accountClient, service.ReconcilerConfig{
		FreezeWindow: cfg.FreezeWindow,
	})
	queue := service.NewConversionQueue(clientstore.NewQueueStore(store), sink, service.ConversionQueueConfig{
		Conversions: cfg.Conversions,
		Retry: readiness.Policy{
			Attempts: cfg.AnalyticsRetryAttempts,
			Delay:    cfg.AnalyticsRetryDelay,
		},
	})
	defer queue.Close()

	states, unsubscribe := reconciler.Subscribe()
	defer unsubscribe()
	if err := reconciler.Start(ctx); err != nil {
		return err
	}
	defer reconciler.Stop()
	queue.Kick() // mount

	state, err := awaitSettled(ctx, states, opts.wait)
	if err != nil {
		return err
	}
	slog.Info("navbar mounted", "phase", state.Phase, "role", state.Role, "credits", state.Credits)

	if opts.event != "" {
		if err := queue.Enqueue(ctx, opts.event, map[string]any{"source": "client"}); err != nil {
			return err
		}
	}
	if opts.logout {
		if err := reconciler.Logout(ctx); err != nil {
			return err
		}
	}

	if opts.serve != "" {
		return serve(ctx, opts.serve, cfg, reconciler, queue)
	}

	// page-hide
	queue.Kick()
	queue.Wait()

	if target, err := store.ConsumeResumeTarget(ctx, false); err == nil && target != nil {
		slog.Info("resume target pending", "url", target.URL())
	}
	return printJSON(reconciler.State())
}

func applyStoreFlags(ctx context.Context, store *clientstore.Store, opts options) error {
	switch opts.consent {
	case "":
	case "granted", "denied":
		if err := store.SetConsent(ctx, opts.consent == "granted"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("-consent must be granted or denied, got %q", opts.consent)
	}

	if opts.resumeTo != "" {
		path, query, _ := strings.Cut(opts.resumeTo, "?")
		if err := store.SaveResumeTarget(ctx, path, query); err != nil {
			return err
		}
	}
	return nil
}

// awaitSettled waits for the first state past Loading.
func awaitSettled(ctx context.Context, states <-chan domain.NavbarState, wait time.Duration) (domain.NavbarState, error) {
	timeout := time.After(wait)
	for {
		select {
		case s := <-states:
			if s.Phase == domain.PhaseGuest || s.Phase == domain.PhaseAuthenticated {
				return s, nil
			}
		case <-timeout:
			return domain.NavbarState{}, fmt.Errorf("navbar did not settle within %s", wait)
		case <-ctx.Done():
			return domain.NavbarState{}, ctx.Err()
		}
	}
}

func serve(ctx context.Context, addr string, cfg *config.Config, reconciler *service.NavbarReconciler, queue *service.ConversionQueue) error {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName + " session",
		ErrorHandler: handler.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	handler.NewSessionHandler(reconciler, queue).Register(app)

	go func() {
		<-ctx.Done()
		// unload
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := queue.Drain(drainCtx); err != nil {
			slog.Warn("conversions left queued on unload", "error", err)
		}
		cancel()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	slog.Info("🌐 Session API listening", "addr", addr)
	return app.Listen(addr)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
