package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLifecycleMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycleMetrics(reg)
	m.Transition("ACCEPTED", "telegram")
	m.Transition("ACCEPTED", "telegram")
	m.Rejected("complete", "INVALID_STATE_TRANSITION")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "vertex_assignment_transitions_total", "channel", "telegram"); err != nil || got != 2 {
		t.Fatalf("expected 2 telegram transitions, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vertex_assignment_rejections_total", "code", "INVALID_STATE_TRANSITION"); err != nil || got != 1 {
		t.Fatalf("expected 1 rejection, got %f (%v)", got, err)
	}
}

func TestLedgerAndTelegramMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ledger := NewLedgerMetrics(reg)
	bot := NewTelegramMetrics(reg)
	ledger.Entry("TASK_SPEND")
	ledger.InsufficientFunds()
	bot.Command("accept", "ok")
	bot.Send("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "vertex_ledger_entries_total", "type", "TASK_SPEND"); err != nil || got != 1 {
		t.Fatalf("unexpected ledger entries %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "vertex_telegram_sends_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("empty outcome should be labelled unknown, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var lm *LifecycleMetrics
	lm.Transition("ACCEPTED", "web")
	NewLedgerMetrics(nil).Entry("REFUND")
	NewTelegramMetrics(nil).Command("help", "ok")
}
