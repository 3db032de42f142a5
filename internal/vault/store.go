package vault

import (
	"context"
	"sync"
)

// LedgerRecord is the persisted form of the ledger figures. The accumulator is
// a decimal string because it exceeds 64 bits.
type LedgerRecord struct {
	TotalDeposited uint64
	RewardPerUnit  string
	LastCheckpoint uint64
	RatePerSecond  uint64
}

// AccountRecord is the persisted form of one account entry.
type AccountRecord struct {
	ID        string
	Balance   uint64
	Claimable uint64
	Snapshot  string
}

// Store persists vault state. SaveCheckpoint is called inside each operation
// before the in-memory commit; a nil account means only the ledger changed.
// Implementations must apply the ledger and account rows atomically.
type Store interface {
	Load(ctx context.Context) (*LedgerRecord, []AccountRecord, error)
	SaveCheckpoint(ctx context.Context, ledger LedgerRecord, account *AccountRecord) error
}

// MemoryStore keeps vault state in process memory. Used in tests and DB-less
// development, mirroring the durable Postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	ledger   *LedgerRecord
	accounts map[string]AccountRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]AccountRecord)}
}

// Load returns the stored ledger and account records, or a nil ledger when
// nothing has been saved yet.
func (s *MemoryStore) Load(_ context.Context) (*LedgerRecord, []AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil, nil, nil
	}
	ledger := *s.ledger
	accounts := make([]AccountRecord, 0, len(s.accounts))
	for _, rec := range s.accounts {
		accounts = append(accounts, rec)
	}
	return &ledger, accounts, nil
}

// SaveCheckpoint stores the ledger record and, when present, the account record.
func (s *MemoryStore) SaveCheckpoint(_ context.Context, ledger LedgerRecord, account *AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = &ledger
	if account != nil {
		s.accounts[account.ID] = *account
	}
	return nil
}
