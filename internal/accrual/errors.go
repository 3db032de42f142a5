package accrual

import "errors"

var (
	// ErrInsufficientBalance occurs when a withdrawal exceeds the account's
	// deposited balance. The caller may retry with a smaller amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrArithmeticOverflow indicates a balance, total or reward figure would
	// exceed its representable range. The enclosing operation must abort;
	// figures are never saturated or wrapped.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrTimeReversal indicates a checkpoint was requested for an instant
	// before the ledger's last checkpoint. The clock is logical and monotonic.
	ErrTimeReversal = errors.New("checkpoint time precedes last checkpoint")

	// ErrStaleLedger indicates an account reconciliation or rate change was
	// attempted through a handle whose ledger is no longer checkpointed to the
	// handle's instant. This is the bug class the freshness gate exists to stop.
	ErrStaleLedger = errors.New("ledger handle is stale")
)
