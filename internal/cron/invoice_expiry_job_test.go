package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

type fakeExpirer struct {
	results []int
	cutoffs []time.Time
	err     error
}

func (f *fakeExpirer) ExpirePending(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.results) == 0 {
		return 0, nil
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, nil
}

func newInvoiceExpiryJob(t *testing.T, expirer *fakeExpirer, ttl time.Duration) *invoiceExpiryJob {
	t.Helper()
	job, err := NewInvoiceExpiryJob(InvoiceExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Invoices:   expirer,
		PendingTTL: ttl,
	})
	if err != nil {
		t.Fatalf("NewInvoiceExpiryJob: %v", err)
	}
	return job.(*invoiceExpiryJob)
}

func TestInvoiceExpiryJobUsesPendingTTL(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{results: []int{3}}
	job := newInvoiceExpiryJob(t, expirer, 2*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.cutoffs) != 1 {
		t.Fatalf("expected one pass, got %d", len(expirer.cutoffs))
	}
	if want := now.Add(-2 * time.Hour); !expirer.cutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, expirer.cutoffs[0])
	}
}

func TestInvoiceExpiryJobDrainsFullBatches(t *testing.T) {
	expirer := &fakeExpirer{results: []int{invoiceExpiryBatch, invoiceExpiryBatch, 1}}
	job := newInvoiceExpiryJob(t, expirer, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(expirer.cutoffs) != 3 {
		t.Fatalf("expected 3 passes, got %d", len(expirer.cutoffs))
	}
	if job.ttl != defaultInvoicePendingTTL {
		t.Fatalf("expected default ttl, got %s", job.ttl)
	}
}

func TestInvoiceExpiryJobPropagatesError(t *testing.T) {
	job := newInvoiceExpiryJob(t, &fakeExpirer{err: errors.New("boom")}, time.Hour)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
