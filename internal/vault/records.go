package vault

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/congo-pay/stake_vault/internal/accrual"
)

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse unsigned value %q: %w", s, err)
	}
	return v, nil
}

func ledgerRecord(l *accrual.Ledger) LedgerRecord {
	return LedgerRecord{
		TotalDeposited: l.TotalDeposited(),
		RewardPerUnit:  l.RewardPerUnit().Dec(),
		LastCheckpoint: l.LastCheckpoint(),
		RatePerSecond:  l.RatePerSecond(),
	}
}

func restoreLedger(rec LedgerRecord) (*accrual.Ledger, error) {
	acc, err := uint256.FromDecimal(rec.RewardPerUnit)
	if err != nil {
		return nil, fmt.Errorf("parse accumulator %q: %w", rec.RewardPerUnit, err)
	}
	return accrual.RestoreLedger(rec.TotalDeposited, acc, rec.LastCheckpoint, rec.RatePerSecond), nil
}

func accountRecord(id string, a *accrual.Account) *AccountRecord {
	return &AccountRecord{
		ID:        id,
		Balance:   a.Balance(),
		Claimable: a.Claimable(),
		Snapshot:  a.Snapshot().Dec(),
	}
}

func restoreAccount(rec AccountRecord) (*accrual.Account, error) {
	snapshot, err := uint256.FromDecimal(rec.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %q for account %s: %w", rec.Snapshot, rec.ID, err)
	}
	return accrual.RestoreAccount(rec.Balance, rec.Claimable, snapshot), nil
}
