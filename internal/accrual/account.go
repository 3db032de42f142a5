package accrual

import "github.com/holiman/uint256"

// Account is one depositor's entry: the deposited balance, rewards reconciled
// but not yet paid out, and the accumulator value as of the last
// reconciliation. Entries are created lazily all-zero and never destroyed,
// only zeroed through withdrawals and claims.
type Account struct {
	balance   uint64
	claimable uint64
	snapshot  *uint256.Int
}

// NewAccount returns a zeroed account entry.
func NewAccount() *Account {
	return &Account{snapshot: new(uint256.Int)}
}

// RestoreAccount rebuilds an account entry from persisted figures.
func RestoreAccount(balance, claimable uint64, snapshot *uint256.Int) *Account {
	return &Account{balance: balance, claimable: claimable, snapshot: snapshot.Clone()}
}

// Clone returns an independent copy for working-copy commits.
func (a *Account) Clone() *Account {
	return &Account{balance: a.balance, claimable: a.claimable, snapshot: a.snapshot.Clone()}
}

// Balance reports the stored deposited balance. Unaffected by staleness.
func (a *Account) Balance() uint64 { return a.balance }

// Claimable reports rewards already reconciled but not yet claimed.
func (a *Account) Claimable() uint64 { return a.claimable }

// Snapshot returns a copy of the accumulator snapshot.
func (a *Account) Snapshot() *uint256.Int { return a.snapshot.Clone() }

// PreviewClaim projects the total claimable rewards against the given
// accumulator value without mutating the account.
func (a *Account) PreviewClaim(accumulator *uint256.Int) (uint64, error) {
	credit, err := a.pendingCredit(accumulator)
	if err != nil {
		return 0, err
	}
	total, ok := addUint64(a.claimable, credit)
	if !ok {
		return 0, ErrArithmeticOverflow
	}
	return total, nil
}

// pendingCredit computes the account's share of accumulator growth since its
// snapshot: (accumulator - snapshot) * balance / scale.
func (a *Account) pendingCredit(accumulator *uint256.Int) (uint64, error) {
	if accumulator.Lt(a.snapshot) {
		// The accumulator is monotonic; a regression means this entry was
		// reconciled against a different or newer ledger than the one given.
		return 0, ErrStaleLedger
	}
	delta := new(uint256.Int).Sub(accumulator, a.snapshot)
	product, overflow := new(uint256.Int).MulOverflow(delta, uint256.NewInt(a.balance))
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	product.Div(product, scale)
	if !product.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return product.Uint64(), nil
}

// Book is the keyed account store. A missing key reads as an all-zero entry;
// entries materialize on the first committed mutation.
type Book struct {
	accounts map[string]*Account
}

// NewBook creates an empty account book.
func NewBook() *Book {
	return &Book{accounts: make(map[string]*Account)}
}

// Snapshot returns an independent copy of the entry for id, or a zeroed entry
// if the account has never been touched. The book itself is not modified.
func (b *Book) Snapshot(id string) *Account {
	if a, ok := b.accounts[id]; ok {
		return a.Clone()
	}
	return NewAccount()
}

// Put commits an entry for id, replacing any previous one.
func (b *Book) Put(id string, a *Account) {
	b.accounts[id] = a
}

// Balance reports the stored balance for id without copying.
func (b *Book) Balance(id string) uint64 {
	if a, ok := b.accounts[id]; ok {
		return a.balance
	}
	return 0
}

// TotalBalance sums every stored balance. It exists for the invariant that the
// sum always equals the ledger's total deposited figure.
func (b *Book) TotalBalance() uint64 {
	var total uint64
	for _, a := range b.accounts {
		total += a.balance
	}
	return total
}
