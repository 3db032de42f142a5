package accrual

import "github.com/holiman/uint256"

// The stale/fresh discipline is split across two handle types per wrapped
// value. A StaleLedger exposes only read projections; Freshen is the sole
// transition to a FreshLedger, which carries the full mutation surface. A
// FreshAccount is obtainable only through FreshLedger.Reconcile, so an account
// can never be mutated without first absorbing the ledger's elapsed time. Go
// has no phantom types, so handle reuse across a later checkpoint is caught at
// runtime: every mutating call re-asserts that the ledger is still
// checkpointed to the handle's instant.

// StaleLedger is the handle held between operations. Read-only.
type StaleLedger struct {
	l *Ledger
}

// Wrap produces a stale handle for l.
func Wrap(l *Ledger) StaleLedger {
	return StaleLedger{l: l}
}

// TotalDeposited reports the stored deposit total.
func (s StaleLedger) TotalDeposited() uint64 { return s.l.totalDeposited }

// RatePerSecond reports the stored reward rate.
func (s StaleLedger) RatePerSecond() uint64 { return s.l.ratePerSecond }

// ProjectedAccumulator computes what the accumulator would be after a
// checkpoint at now, without performing one. Used by preview queries, which
// must not alter stored state.
func (s StaleLedger) ProjectedAccumulator(now uint64) (*uint256.Int, error) {
	if now < s.l.lastCheckpoint {
		return nil, ErrTimeReversal
	}
	projected := s.l.rewardPerUnit.Clone()
	elapsed := now - s.l.lastCheckpoint
	if elapsed > 0 && s.l.totalDeposited > 0 {
		var overflow bool
		projected, overflow = projected.AddOverflow(projected, accumulatorGrowth(s.l.ratePerSecond, elapsed, s.l.totalDeposited))
		if overflow {
			return nil, ErrArithmeticOverflow
		}
	}
	return projected, nil
}

// Freshen checkpoints the ledger to now and yields the fresh handle. This is
// the only path that advances the accumulator.
func (s StaleLedger) Freshen(now uint64) (FreshLedger, error) {
	if err := s.l.checkpoint(now); err != nil {
		return FreshLedger{}, err
	}
	return FreshLedger{l: s.l, at: now}, nil
}

// FreshLedger is a ledger handle checkpointed to a known instant. Mutations
// are reachable only through it.
type FreshLedger struct {
	l  *Ledger
	at uint64
}

// assertFresh rejects a handle whose ledger has since been checkpointed to a
// different instant (or a zero-value handle).
func (f FreshLedger) assertFresh() error {
	if f.l == nil || f.l.lastCheckpoint != f.at {
		return ErrStaleLedger
	}
	return nil
}

// Reconcile folds the account's share of accumulator growth since its last
// snapshot into its claimable balance and yields the account's fresh handle.
func (f FreshLedger) Reconcile(a *Account) (FreshAccount, error) {
	if err := f.assertFresh(); err != nil {
		return FreshAccount{}, err
	}
	credit, err := a.pendingCredit(f.l.rewardPerUnit)
	if err != nil {
		return FreshAccount{}, err
	}
	claimable, ok := addUint64(a.claimable, credit)
	if !ok {
		return FreshAccount{}, ErrArithmeticOverflow
	}
	a.claimable = claimable
	a.snapshot = f.l.rewardPerUnit.Clone()
	return FreshAccount{a: a, ledger: f}, nil
}

// SetRate replaces the reward rate going forward and returns the previous
// value. It never checkpoints itself; requiring a fresh handle guarantees the
// old rate was fully accounted for before the new one takes effect.
func (f FreshLedger) SetRate(newRate uint64) (uint64, error) {
	if err := f.assertFresh(); err != nil {
		return 0, err
	}
	old := f.l.ratePerSecond
	f.l.ratePerSecond = newRate
	return old, nil
}

// FreshAccount is an account entry reconciled against a fresh ledger. The
// balance-mutating operations live here and nowhere else.
type FreshAccount struct {
	a      *Account
	ledger FreshLedger
}

// Balance reports the reconciled deposited balance.
func (fa FreshAccount) Balance() uint64 { return fa.a.balance }

// Claimable reports the reconciled claimable rewards.
func (fa FreshAccount) Claimable() uint64 { return fa.a.claimable }

// Deposit increases the balance and the ledger's deposit total by amount and
// returns the new balance.
func (fa FreshAccount) Deposit(amount uint64) (uint64, error) {
	if err := fa.ledger.assertFresh(); err != nil {
		return 0, err
	}
	balance, ok := addUint64(fa.a.balance, amount)
	if !ok {
		return 0, ErrArithmeticOverflow
	}
	total, ok := addUint64(fa.ledger.l.totalDeposited, amount)
	if !ok {
		return 0, ErrArithmeticOverflow
	}
	fa.a.balance = balance
	fa.ledger.l.totalDeposited = total
	return balance, nil
}

// Withdraw decreases the balance and the ledger's deposit total by amount and
// returns the new balance. Fails with ErrInsufficientBalance when amount
// exceeds the balance, leaving everything untouched.
func (fa FreshAccount) Withdraw(amount uint64) (uint64, error) {
	if err := fa.ledger.assertFresh(); err != nil {
		return 0, err
	}
	if amount > fa.a.balance {
		return 0, ErrInsufficientBalance
	}
	if amount > fa.ledger.l.totalDeposited {
		// The deposit total is the sum of all balances, so this cannot happen
		// unless state was corrupted; refuse to wrap.
		return 0, ErrArithmeticOverflow
	}
	fa.a.balance -= amount
	fa.ledger.l.totalDeposited -= amount
	return fa.a.balance, nil
}

// Claim zeroes the claimable balance and returns its prior value.
func (fa FreshAccount) Claim() (uint64, error) {
	if err := fa.ledger.assertFresh(); err != nil {
		return 0, err
	}
	claimed := fa.a.claimable
	fa.a.claimable = 0
	return claimed, nil
}
