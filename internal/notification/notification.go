package notification

import (
	"context"
	"log/slog"
)

const (
	// KindDeposit indicates a completed deposit into the vault.
	KindDeposit = "deposit"
	// KindWithdrawal indicates a completed withdrawal from the vault.
	KindWithdrawal = "withdrawal"
	// KindClaim indicates a completed reward claim.
	KindClaim = "claim"
	// KindRateUpdated indicates the reward rate was replaced.
	KindRateUpdated = "rate_updated"
)

// Event describes a vault side effect published to downstream systems.
type Event struct {
	Kind    string
	Account string
	Amount  uint64
	Detail  string
}

// Notifier delivers vault events. Delivery is fire-and-forget: errors are
// surfaced to the caller for logging but never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LoggerNotifier is a stub implementation that writes events to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Notify writes the event to the structured logger.
func (n *LoggerNotifier) Notify(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("vault event",
		"kind", event.Kind,
		"account", event.Account,
		"amount", event.Amount,
		"detail", event.Detail,
	)
	return nil
}
