package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabd-ai/vertex-backend/internal/cron"
	"github.com/nabd-ai/vertex-backend/internal/invoices"
	"github.com/nabd-ai/vertex-backend/internal/ledger"
	"github.com/nabd-ai/vertex-backend/internal/notifications"
	"github.com/nabd-ai/vertex-backend/pkg/bootstrap"
	"github.com/nabd-ai/vertex-backend/pkg/enums"
	"github.com/nabd-ai/vertex-backend/pkg/metrics"
	"github.com/nabd-ai/vertex-backend/pkg/outbox"
)

const serviceName = "cron-worker"

func main() {
	rt, err := bootstrap.Start(context.Background(), serviceName)
	if err != nil {
		bootstrap.Fatal(serviceName, err)
	}
	defer rt.Close()

	jobs, err := jobsFor(rt)
	rt.Must("cron jobs", err)

	locks, err := cron.NewRedisLocker(rt.Redis, rt.Config.App.Env)
	rt.Must("cron locker", err)

	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: jobs,
		Locks:    locks,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Every:    rt.Config.Cron.Interval,
		Tick:     rt.Config.Cron.Tick,
	})
	rt.Must("cron service", err)

	ctx, stop := rt.SignalContext()
	defer stop()
	metrics.Serve(ctx, rt.Config.Cron.MetricsAddr, prometheus.DefaultGatherer, rt.Logger)

	rt.Logger.Info(ctx, "starting cron worker")
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, "cron worker stopped unexpectedly", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Logger.Info(ctx, "cron worker shutting down gracefully")
}

// jobsFor registers invoice expiry on its own cadence; the retention jobs use
// the scheduler default.
func jobsFor(rt *bootstrap.Runtime) (*cron.Registry, error) {
	cfg, logg := rt.Config, rt.Logger
	conn := rt.DB.DB()
	outboxRepo := outbox.NewRepository(conn)

	currency, err := enums.ParseCurrency(cfg.Billing.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), rt.DB, metrics.NewLedgerMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		return nil, err
	}
	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:            invoices.NewRepository(conn),
		Tx:              rt.DB,
		Ledger:          ledgerSvc,
		Outbox:          outbox.NewService(outboxRepo, logg),
		CreditsPerUnit:  cfg.Billing.CreditsPerUnit,
		DefaultCurrency: currency,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewInvoiceExpiryJob(cron.InvoiceExpiryJobParams{
		Logger:     logg,
		Invoices:   invoiceSvc,
		PendingTTL: cfg.Billing.InvoicePendingTTL,
	})
	if err != nil {
		return nil, err
	}
	inboxCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         rt.DB,
		Repository: notifications.NewRepository(conn),
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return nil, err
	}
	outboxCleanup, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          rt.DB,
		Repository:  outboxRepo,
		Retention:   cfg.Cron.OutboxRetention,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(
		cron.Entry{Job: expiry, Every: cfg.Cron.InvoiceExpiryEvery},
		cron.Entry{Job: inboxCleanup},
		cron.Entry{Job: outboxCleanup},
	)
}
