// Package accrual implements the lazy reward-accounting core of the vault: a
// single reward-per-unit-deposited accumulator advanced on checkpoint, per
// account reconciliation against that accumulator, and the stale/fresh handle
// discipline that keeps mutations away from unreconciled figures.
//
// All per-unit reward quantities are fixed-point integers with scale 1e18.
package accrual

import "github.com/holiman/uint256"

// scale is the fixed-point denominator for reward-per-unit quantities.
var scale = uint256.NewInt(1_000_000_000_000_000_000)

// Ledger holds the vault-wide accrual figures. It is only reachable for
// mutation through a FreshLedger handle obtained via Wrap(...).Freshen.
type Ledger struct {
	totalDeposited uint64
	rewardPerUnit  *uint256.Int
	lastCheckpoint uint64
	ratePerSecond  uint64
}

// NewLedger creates a zeroed ledger starting its clock at startTime.
func NewLedger(ratePerSecond, startTime uint64) *Ledger {
	return &Ledger{
		rewardPerUnit:  new(uint256.Int),
		lastCheckpoint: startTime,
		ratePerSecond:  ratePerSecond,
	}
}

// RestoreLedger rebuilds a ledger from persisted figures.
func RestoreLedger(totalDeposited uint64, rewardPerUnit *uint256.Int, lastCheckpoint, ratePerSecond uint64) *Ledger {
	return &Ledger{
		totalDeposited: totalDeposited,
		rewardPerUnit:  rewardPerUnit.Clone(),
		lastCheckpoint: lastCheckpoint,
		ratePerSecond:  ratePerSecond,
	}
}

// Clone returns an independent copy. Operations mutate a clone and swap it in
// only once every external collaborator call has succeeded.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		totalDeposited: l.totalDeposited,
		rewardPerUnit:  l.rewardPerUnit.Clone(),
		lastCheckpoint: l.lastCheckpoint,
		ratePerSecond:  l.ratePerSecond,
	}
}

// TotalDeposited reports the sum of all account balances.
func (l *Ledger) TotalDeposited() uint64 { return l.totalDeposited }

// RewardPerUnit returns a copy of the accumulator.
func (l *Ledger) RewardPerUnit() *uint256.Int { return l.rewardPerUnit.Clone() }

// LastCheckpoint reports the logical time of the last checkpoint.
func (l *Ledger) LastCheckpoint() uint64 { return l.lastCheckpoint }

// RatePerSecond reports the current reward rate.
func (l *Ledger) RatePerSecond() uint64 { return l.ratePerSecond }

// checkpoint advances the accumulator to now. The timestamp advances even when
// nothing is deposited so a dormant period is never credited retroactively.
// Calling it twice at the same instant leaves the accumulator untouched.
func (l *Ledger) checkpoint(now uint64) error {
	if now < l.lastCheckpoint {
		return ErrTimeReversal
	}
	elapsed := now - l.lastCheckpoint
	if elapsed > 0 && l.totalDeposited > 0 {
		sum, overflow := new(uint256.Int).AddOverflow(l.rewardPerUnit, accumulatorGrowth(l.ratePerSecond, elapsed, l.totalDeposited))
		if overflow {
			return ErrArithmeticOverflow
		}
		l.rewardPerUnit = sum
	}
	l.lastCheckpoint = now
	return nil
}

// accumulatorGrowth computes rate * elapsed * scale / total. The product of
// three 64-bit factors cannot overflow 256 bits, so the math here is unchecked.
func accumulatorGrowth(rate, elapsed, total uint64) *uint256.Int {
	growth := new(uint256.Int).Mul(uint256.NewInt(rate), uint256.NewInt(elapsed))
	growth.Mul(growth, scale)
	return growth.Div(growth, uint256.NewInt(total))
}

func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
