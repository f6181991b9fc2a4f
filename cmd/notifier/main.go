package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabd-ai/vertex-backend/internal/notifications"
	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/pkg/bootstrap"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/idempotency"
	"github.com/nabd-ai/vertex-backend/pkg/outbox/registry"
	"github.com/nabd-ai/vertex-backend/pkg/telegram"
)

const serviceName = "notifier"

func main() {
	rt, err := bootstrap.Start(context.Background(), serviceName)
	if err != nil {
		bootstrap.Fatal(serviceName, err)
	}
	defer rt.Close()

	handler, err := newHandler(rt)
	rt.Must("notification handler", err)

	conn := rt.DB.DB()
	notifier, err := NewService(ServiceParams{
		Config:      rt.Config,
		Logger:      rt.Logger,
		DB:          rt.DB,
		Redis:       rt.Redis,
		Repository:  outbox.NewRepository(conn),
		Registry:    registry.NewEventRegistry(),
		Handler:     handler,
		DeadLetters: outbox.NewDeadLetters(conn),
	})
	rt.Must("notifier", err)

	ctx, stop := rt.SignalContext()
	defer stop()
	metrics.Serve(ctx, rt.Config.Outbox.MetricsAddr, prometheus.DefaultGatherer, rt.Logger)

	rt.Logger.Info(ctx, "starting notifier")
	if err := notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, "notifier stopped unexpectedly", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Logger.Info(ctx, "notifier shutting down gracefully")
}

// newHandler writes inbox rows always; Telegram pushes only go out when a bot
// token is configured.
func newHandler(rt *bootstrap.Runtime) (*notifications.Handler, error) {
	dedupe, err := idempotency.NewManager(rt.Redis, rt.Config.Telegram.UpdateTTL)
	if err != nil {
		return nil, err
	}
	params := notifications.HandlerParams{
		Repo:        notifications.NewRepository(rt.DB.DB()),
		Specialists: specialists.NewRepository(rt.DB.DB()),
		Dedupe:      dedupe,
		Metrics:     metrics.NewTelegramMetrics(prometheus.DefaultRegisterer),
		Logger:      rt.Logger,
	}
	if rt.Config.Telegram.Enabled() {
		bot, err := telegram.New(rt.Config.Telegram, rt.Logger)
		if err != nil {
			return nil, err
		}
		params.Sender = bot
	} else {
		rt.Logger.Warn(context.Background(), "telegram bot token not set; offers will not be pushed")
	}
	return notifications.NewHandler(params)
}
