package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "vertex"

// LifecycleMetrics counts assignment transitions per channel.
type LifecycleMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewLifecycleMetrics registers the assignment lifecycle counters.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "transitions_total",
		Help:      "Applied assignment status transitions.",
	}, []string{"to", "channel"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "assignment",
		Name:      "rejections_total",
		Help:      "Assignment transitions rejected by a guard.",
	}, []string{"action", "code"})
	reg.MustRegister(transitions, rejections)
	return &LifecycleMetrics{transitions: transitions, rejections: rejections}
}

// Transition records an applied status change.
func (m *LifecycleMetrics) Transition(to, channel string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to), normalizeLabel(channel)).Inc()
}

// Rejected records a refused transition with its error code.
func (m *LifecycleMetrics) Rejected(action, code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(action), normalizeLabel(code)).Inc()
}

// LedgerMetrics tracks ledger writes.
type LedgerMetrics struct {
	entries      *prometheus.CounterVec
	insufficient prometheus.Counter
}

// NewLedgerMetrics registers the wallet ledger counters.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "entries_total",
		Help:      "Credit transactions appended, by type.",
	}, []string{"type"})
	insufficient := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "insufficient_funds_total",
		Help:      "Debits refused because the wallet balance was too low.",
	})
	reg.MustRegister(entries, insufficient)
	return &LedgerMetrics{entries: entries, insufficient: insufficient}
}

// Entry records one appended credit transaction.
func (m *LedgerMetrics) Entry(txType string) {
	if m == nil || m.entries == nil {
		return
	}
	m.entries.WithLabelValues(normalizeLabel(txType)).Inc()
}

// InsufficientFunds records a refused debit.
func (m *LedgerMetrics) InsufficientFunds() {
	if m == nil || m.insufficient == nil {
		return
	}
	m.insufficient.Inc()
}

// TelegramMetrics tracks bot traffic.
type TelegramMetrics struct {
	commands *prometheus.CounterVec
	sends    *prometheus.CounterVec
}

// NewTelegramMetrics registers the bot counters.
func NewTelegramMetrics(reg prometheus.Registerer) *TelegramMetrics {
	if reg == nil {
		return &TelegramMetrics{}
	}
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "telegram",
		Name:      "commands_total",
		Help:      "Bot commands handled, by command and outcome.",
	}, []string{"command", "outcome"})
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "telegram",
		Name:      "sends_total",
		Help:      "Outbound bot messages, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(commands, sends)
	return &TelegramMetrics{commands: commands, sends: sends}
}

// Command records a handled command.
func (m *TelegramMetrics) Command(command, outcome string) {
	if m == nil || m.commands == nil {
		return
	}
	m.commands.WithLabelValues(normalizeLabel(command), normalizeLabel(outcome)).Inc()
}

// Send records an outbound message attempt.
func (m *TelegramMetrics) Send(outcome string) {
	if m == nil || m.sends == nil {
		return
	}
	m.sends.WithLabelValues(normalizeLabel(outcome)).Inc()
}
