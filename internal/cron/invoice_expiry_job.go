package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

const (
	defaultInvoicePendingTTL = 24 * time.Hour
	invoiceExpiryBatch       = 200
	invoiceExpiryMaxBatches  = 20
)

type invoiceExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type InvoiceExpiryJobParams struct {
	Logger     *logger.Logger
	Invoices   invoiceExpirer
	PendingTTL time.Duration
}

// NewInvoiceExpiryJob fails PENDING invoices older than the pending TTL.
func NewInvoiceExpiryJob(params InvoiceExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultInvoicePendingTTL
	}
	return &invoiceExpiryJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

type invoiceExpiryJob struct {
	logg     *logger.Logger
	invoices invoiceExpirer
	ttl      time.Duration
	now      func() time.Time
}

func (j *invoiceExpiryJob) Name() string { return "invoice-expiry" }

func (j *invoiceExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for i := 0; i < invoiceExpiryMaxBatches; i++ {
		expired, err := j.invoices.ExpirePending(ctx, cutoff, invoiceExpiryBatch)
		total += expired
		if err != nil {
			return fmt.Errorf("invoice expiry: %w", err)
		}
		if expired < invoiceExpiryBatch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"pending_ttl":      j.ttl.String(),
		"invoices_expired": total,
	})
	j.logg.Info(logCtx, "invoice expiry complete")
	return nil
}
