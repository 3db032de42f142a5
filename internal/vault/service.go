// Package vault is the public facade over the accrual core: deposits,
// withdrawals, reward claims, previews and rate changes, composed with the
// external custodian, the authority gate and the notifier.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/congo-pay/stake_vault/internal/accrual"
	"github.com/congo-pay/stake_vault/internal/authority"
	"github.com/congo-pay/stake_vault/internal/notification"
	"github.com/congo-pay/stake_vault/internal/transfer"
)

// ErrInvalidAmount occurs when an operation is requested for a zero amount.
var ErrInvalidAmount = errors.New("amount must be positive")

// Config carries construction-time vault configuration.
type Config struct {
	DepositAsset string
	RewardAsset  string
	InitialRate  uint64
}

// Service owns one vault instance: the ledger, the account book and every
// collaborator. Strictly single-writer; one operation completes fully,
// external calls included, before the next begins.
type Service struct {
	mu         sync.Mutex
	cfg        Config
	ledger     *accrual.Ledger
	book       *accrual.Book
	store      Store
	transferor transfer.Transferor
	auth       authority.Authority
	notifier   notification.Notifier
	clock      Clock
	logger     *slog.Logger
}

// NewService restores vault state from the store, or initializes a zeroed
// ledger at the current instant when the store is empty.
func NewService(ctx context.Context, cfg Config, store Store, transferor transfer.Transferor,
	auth authority.Authority, notifier notification.Notifier, clock Clock, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if transferor == nil {
		transferor = transfer.StaticTransferor{}
	}
	if clock == nil {
		clock = SystemClock()
	}

	s := &Service{
		cfg:        cfg,
		book:       accrual.NewBook(),
		store:      store,
		transferor: transferor,
		auth:       auth,
		notifier:   notifier,
		clock:      clock,
		logger:     logger,
	}

	ledgerRec, accountRecs, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vault state: %w", err)
	}
	if ledgerRec == nil {
		s.ledger = accrual.NewLedger(cfg.InitialRate, clock.Now())
		if err := store.SaveCheckpoint(ctx, ledgerRecord(s.ledger), nil); err != nil {
			return nil, fmt.Errorf("persist initial ledger: %w", err)
		}
		return s, nil
	}

	if s.ledger, err = restoreLedger(*ledgerRec); err != nil {
		return nil, err
	}
	for _, rec := range accountRecs {
		acct, err := restoreAccount(rec)
		if err != nil {
			return nil, err
		}
		s.book.Put(rec.ID, acct)
	}
	return s, nil
}

// Deposit credits amount to the account after pulling the deposit asset from
// the custodian. Returns the new balance.
func (s *Service) Deposit(ctx context.Context, account string, amount uint64) (uint64, error) {
	if err := validateAccount(account); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.ledger.Clone()
	fresh, err := accrual.Wrap(work).Freshen(s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("checkpoint ledger: %w", err)
	}
	acct := s.book.Snapshot(account)
	entry, err := fresh.Reconcile(acct)
	if err != nil {
		return 0, fmt.Errorf("reconcile account %s: %w", account, err)
	}
	balance, err := entry.Deposit(amount)
	if err != nil {
		return 0, err
	}

	receipt, err := s.transferor.TransferIn(ctx, transfer.Request{
		Account:   account,
		Asset:     s.cfg.DepositAsset,
		Amount:    amount,
		Reference: uuid.NewString(),
	})
	if err != nil {
		return 0, fmt.Errorf("transfer in %d %s: %w", amount, s.cfg.DepositAsset, err)
	}

	if err := s.commit(ctx, work, account, acct); err != nil {
		return 0, err
	}
	s.notify(ctx, notification.Event{Kind: notification.KindDeposit, Account: account, Amount: amount, Detail: receipt.Reference})
	return balance, nil
}

// Withdraw debits amount from the account and pushes the deposit asset back
// out through the custodian. Returns the new balance. The withdrawal leaves
// claimable rewards untouched beyond the reconciliation itself.
func (s *Service) Withdraw(ctx context.Context, account string, amount uint64) (uint64, error) {
	if err := validateAccount(account); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.ledger.Clone()
	fresh, err := accrual.Wrap(work).Freshen(s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("checkpoint ledger: %w", err)
	}
	acct := s.book.Snapshot(account)
	entry, err := fresh.Reconcile(acct)
	if err != nil {
		return 0, fmt.Errorf("reconcile account %s: %w", account, err)
	}
	balance, err := entry.Withdraw(amount)
	if err != nil {
		return 0, err
	}

	receipt, err := s.transferor.TransferOut(ctx, transfer.Request{
		Account:   account,
		Asset:     s.cfg.DepositAsset,
		Amount:    amount,
		Reference: uuid.NewString(),
	})
	if err != nil {
		return 0, fmt.Errorf("transfer out %d %s: %w", amount, s.cfg.DepositAsset, err)
	}

	if err := s.commit(ctx, work, account, acct); err != nil {
		return 0, err
	}
	s.notify(ctx, notification.Event{Kind: notification.KindWithdrawal, Account: account, Amount: balance, Detail: receipt.Reference})
	return balance, nil
}

// Claim pays out the account's reconciled rewards through the custodian and
// returns the amount transferred.
func (s *Service) Claim(ctx context.Context, account string) (uint64, error) {
	if err := validateAccount(account); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.ledger.Clone()
	fresh, err := accrual.Wrap(work).Freshen(s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("checkpoint ledger: %w", err)
	}
	acct := s.book.Snapshot(account)
	entry, err := fresh.Reconcile(acct)
	if err != nil {
		return 0, fmt.Errorf("reconcile account %s: %w", account, err)
	}
	claimed, err := entry.Claim()
	if err != nil {
		return 0, err
	}

	detail := ""
	if claimed > 0 {
		receipt, err := s.transferor.TransferOut(ctx, transfer.Request{
			Account:   account,
			Asset:     s.cfg.RewardAsset,
			Amount:    claimed,
			Reference: uuid.NewString(),
		})
		if err != nil {
			return 0, fmt.Errorf("transfer out %d %s: %w", claimed, s.cfg.RewardAsset, err)
		}
		detail = receipt.Reference
	}

	if err := s.commit(ctx, work, account, acct); err != nil {
		return 0, err
	}
	s.notify(ctx, notification.Event{Kind: notification.KindClaim, Account: account, Amount: claimed, Detail: detail})
	return claimed, nil
}

// PreviewClaim projects the account's claimable rewards at the current
// instant without checkpointing or mutating anything.
func (s *Service) PreviewClaim(account string) (uint64, error) {
	if err := validateAccount(account); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projected, err := accrual.Wrap(s.ledger).ProjectedAccumulator(s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("project accumulator: %w", err)
	}
	return s.book.Snapshot(account).PreviewClaim(projected)
}

// BalanceOf reports the stored balance for the account, unaffected by
// staleness.
func (s *Service) BalanceOf(account string) (uint64, error) {
	if err := validateAccount(account); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Balance(account), nil
}

// SetRewardRate replaces the reward rate after the authority gate passes and
// the old rate has been fully accounted for by a checkpoint.
func (s *Service) SetRewardRate(ctx context.Context, caller, credential string, newRate uint64) error {
	if s.auth == nil {
		return authority.ErrUnauthorized
	}
	if err := s.auth.Authorize(ctx, credential); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.ledger.Clone()
	fresh, err := accrual.Wrap(work).Freshen(s.clock.Now())
	if err != nil {
		return fmt.Errorf("checkpoint ledger: %w", err)
	}
	oldRate, err := fresh.SetRate(newRate)
	if err != nil {
		return err
	}

	if err := s.commit(ctx, work, "", nil); err != nil {
		return err
	}
	s.notify(ctx, notification.Event{
		Kind:    notification.KindRateUpdated,
		Account: caller,
		Amount:  newRate,
		Detail:  fmt.Sprintf("rate %d -> %d", oldRate, newRate),
	})
	return nil
}

// Stats summarizes the stored ledger figures.
type Stats struct {
	TotalDeposited uint64
	RatePerSecond  uint64
	LastCheckpoint uint64
	RewardPerUnit  string
}

// Stats reports the stored ledger figures without checkpointing.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalDeposited: s.ledger.TotalDeposited(),
		RatePerSecond:  s.ledger.RatePerSecond(),
		LastCheckpoint: s.ledger.LastCheckpoint(),
		RewardPerUnit:  s.ledger.RewardPerUnit().Dec(),
	}
}

// commit persists the working copies and only then swaps them in. A store
// failure aborts the operation with stored figures untouched, keeping memory
// and the durable snapshot in step.
func (s *Service) commit(ctx context.Context, work *accrual.Ledger, account string, acct *accrual.Account) error {
	var rec *AccountRecord
	if acct != nil {
		rec = accountRecord(account, acct)
	}
	if err := s.store.SaveCheckpoint(ctx, ledgerRecord(work), rec); err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	s.ledger = work
	if acct != nil {
		s.book.Put(account, acct)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, event notification.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("notify failed", "kind", event.Kind, "account", event.Account, "error", err)
	}
}

func validateAccount(account string) error {
	if account == "" {
		return fmt.Errorf("account id is required")
	}
	return nil
}
