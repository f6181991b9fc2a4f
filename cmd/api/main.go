package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabd-ai/vertex-backend/api/routes"
	"github.com/nabd-ai/vertex-backend/internal/assignments"
	"github.com/nabd-ai/vertex-backend/internal/auth"
	"github.com/nabd-ai/vertex-backend/internal/catalog"
	"github.com/nabd-ai/vertex-backend/internal/dashboard"
	"github.com/nabd-ai/vertex-backend/internal/invoices"
	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/internal/messages"
	"github.com/nabd-ai/vertex-backend/internal/notifications"
	"github.com/nabd-ai/vertex-backend/internal/pairing"
	"github.com/nabd-ai/vertex-backend/internal/requests"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/internal/telegram"
	"github.com/nabd-ai/vertex-backend/internal/users"
	"github.com/nabd-ai/vertex-backend/pkg/auth/session"
	"github.com/nabd-ai/vertex-backend/pkg/bootstrap"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/instance"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/idempotency"
	tgclient "github.com/nabd-ai/vertex-backend/pkg/telegram"
)

const (
	serviceName       = "api"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	rt, err := bootstrap.Start(context.Background(), serviceName)
	if err != nil {
		bootstrap.Fatal(serviceName, err)
	}
	defer rt.Close()

	params := wire(rt)

	port := os.Getenv("PORT")
	if port == "" {
		port = rt.Config.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		ReadHeaderTimeout: readHeaderTimeout,
		Handler:           routes.NewRouter(params),
	}

	ctx, stop := rt.SignalContext()
	defer stop()
	ctx = rt.Logger.WithFields(ctx, map[string]any{"addr": server.Addr, "instance": instance.ID()})

	if err := serve(ctx, rt, server); err != nil {
		rt.Logger.Error(ctx, "api server stopped unexpectedly", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Logger.Info(ctx, "api server shutting down gracefully")
}

// serve blocks until ctx is cancelled and the server drains, or until
// ListenAndServe fails.
func serve(ctx context.Context, rt *bootstrap.Runtime, server *http.Server) error {
	go func() {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			rt.Logger.Error(drainCtx, "api server shutdown failed", err)
		}
	}()

	rt.Logger.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// wire builds every service the router mounts. Any construction failure is
// fatal.
func wire(rt *bootstrap.Runtime) routes.Params {
	cfg, logg := rt.Config, rt.Logger
	conn := rt.DB.DB()
	reg := prometheus.DefaultRegisterer

	usersRepo := users.NewRepository(conn)
	specRepo := specialists.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)
	requestRepo := requests.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	sessions, err := session.NewManager(rt.Redis, cfg.JWT)
	rt.Must("session manager", err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), rt.DB, metrics.NewLedgerMetrics(reg))
	rt.Must("ledger service", err)

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
	})
	rt.Must("auth service", err)

	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             rt.DB,
		Wallets:        ledgerSvc,
		PasswordConfig: cfg.Password,
	})
	rt.Must("register service", err)

	catalogSvc, err := catalog.NewService(catalogRepo)
	rt.Must("catalog service", err)

	profiles, err := specialists.NewService(specRepo, rt.DB, catalogSvc)
	rt.Must("specialist service", err)

	lifecycle, err := assignments.NewService(assignments.ServiceParams{
		Repo:        assignments.NewRepository(conn),
		Requests:    requestRepo,
		Specialists: specRepo,
		Users:       usersRepo,
		Tasks:       catalogRepo,
		Ledger:      ledgerSvc,
		Tx:          rt.DB,
		Outbox:      emitter,
		Metrics:     metrics.NewLifecycleMetrics(reg),
	})
	rt.Must("assignment service", err)

	requestSvc, err := requests.NewService(requests.ServiceParams{
		Repo:   requestRepo,
		Tx:     rt.DB,
		Tasks:  catalogSvc,
		Offers: lifecycle,
		Outbox: emitter,
	})
	rt.Must("request service", err)

	messageSvc, err := messages.NewService(messages.NewRepository(conn), lifecycle)
	rt.Must("message service", err)

	currency, err := enums.ParseCurrency(cfg.Billing.DefaultCurrency)
	rt.Must("default currency", err)
	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:            invoices.NewRepository(conn),
		Tx:              rt.DB,
		Ledger:          ledgerSvc,
		Outbox:          emitter,
		CreditsPerUnit:  cfg.Billing.CreditsPerUnit,
		DefaultCurrency: currency,
	})
	rt.Must("invoice service", err)

	pairingSvc, err := pairing.NewService(rt.Redis, specRepo, cfg.Pairing.TokenTTL)
	rt.Must("pairing service", err)

	dashboardSvc, err := dashboard.NewService(dashboard.ServiceParams{
		Wallets:     ledgerSvc,
		Requests:    requestSvc,
		Assignments: lifecycle,
		Specialists: specRepo,
	})
	rt.Must("dashboard service", err)

	inbox, err := notifications.NewService(notifications.NewRepository(conn))
	rt.Must("notifications service", err)

	var dispatcher *telegram.Dispatcher
	if cfg.Telegram.Enabled() {
		bot, err := tgclient.New(cfg.Telegram, logg)
		rt.Must("telegram client", err)
		dedupe, err := idempotency.NewManager(rt.Redis, cfg.Telegram.UpdateTTL)
		rt.Must("telegram dedupe", err)

		dispatcher, err = telegram.NewDispatcher(telegram.DispatcherParams{
			Lifecycle:   lifecycle,
			Pairing:     pairingSvc,
			Specialists: specRepo,
			Wallets:     ledgerSvc,
			Sender:      bot,
			Dedupe:      dedupe,
			Metrics:     metrics.NewTelegramMetrics(reg),
			Logger:      logg,
		})
		rt.Must("telegram dispatcher", err)

		if cfg.Telegram.WebhookURL != "" {
			if err := bot.SetWebhook(context.Background(), cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				logg.Error(context.Background(), "failed to register telegram webhook", err)
			}
		}
	} else {
		logg.Warn(context.Background(), "telegram bot token not set; webhook disabled")
	}

	return routes.Params{
		Config:        cfg,
		Logger:        logg,
		DB:            rt.DB,
		Redis:         rt.Redis,
		Sessions:      sessions,
		Gatherer:      prometheus.DefaultGatherer,
		HTTP:          metrics.NewHTTPMetrics(reg),
		Auth:          authSvc,
		Register:      registerSvc,
		Users:         usersRepo,
		Specialists:   specRepo,
		Profiles:      profiles,
		Catalog:       catalogSvc,
		Requests:      requestSvc,
		Assignments:   lifecycle,
		Messages:      messageSvc,
		Ledger:        ledgerSvc,
		Invoices:      invoiceSvc,
		Pairing:       pairingSvc,
		Dashboard:     dashboardSvc,
		Notifications: inbox,
		Telegram:      dispatcher,
		DeadLetters:   outbox.NewDeadLetters(conn),
	}
}
