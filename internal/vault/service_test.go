package vault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/congo-pay/stake_vault/internal/accrual"
	"github.com/congo-pay/stake_vault/internal/authority"
	"github.com/congo-pay/stake_vault/internal/logging"
	"github.com/congo-pay/stake_vault/internal/transfer"
)

type manualClock struct {
	now uint64
}

func (c *manualClock) Now() uint64 { return c.now }

// recordingTransferor captures custodian calls and can be told to reject them.
type recordingTransferor struct {
	in      []transfer.Request
	out     []transfer.Request
	failIn  bool
	failOut bool
}

func (r *recordingTransferor) TransferIn(_ context.Context, req transfer.Request) (transfer.Receipt, error) {
	if r.failIn {
		return transfer.Receipt{}, transfer.ErrRejected
	}
	r.in = append(r.in, req)
	return transfer.Receipt{Reference: "in-ref", Status: "settled"}, nil
}

func (r *recordingTransferor) TransferOut(_ context.Context, req transfer.Request) (transfer.Receipt, error) {
	if r.failOut {
		return transfer.Receipt{}, transfer.ErrRejected
	}
	r.out = append(r.out, req)
	return transfer.Receipt{Reference: "out-ref", Status: "settled"}, nil
}

type testDeps struct {
	svc        *Service
	clock      *manualClock
	transferor *recordingTransferor
	store      Store
}

func newTestService(t *testing.T, rate uint64, auth authority.Authority, store Store) testDeps {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	clock := &manualClock{}
	transferor := &recordingTransferor{}
	svc, err := NewService(context.Background(), Config{
		DepositAsset: "STAKE",
		RewardAsset:  "REWARD",
		InitialRate:  rate,
	}, store, transferor, auth, nil, clock, logging.Discard())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return testDeps{svc: svc, clock: clock, transferor: transferor, store: store}
}

func TestScenarioSingleDepositorAccrualAndClaim(t *testing.T) {
	d := newTestService(t, 100, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	balance, err := d.svc.Deposit(ctx, "alice", 100)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balance != 100 {
		t.Fatalf("balance = %d, want 100", balance)
	}

	d.clock.now = 100
	preview, err := d.svc.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview != 10000 {
		t.Fatalf("preview = %d, want 10000", preview)
	}

	claimed, err := d.svc.Claim(ctx, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != 10000 {
		t.Fatalf("claimed = %d, want 10000", claimed)
	}

	preview, err = d.svc.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview after claim: %v", err)
	}
	if preview != 0 {
		t.Fatalf("preview after claim = %d, want 0", preview)
	}

	if len(d.transferor.out) != 1 {
		t.Fatalf("expected 1 outbound transfer, got %d", len(d.transferor.out))
	}
	payout := d.transferor.out[0]
	if payout.Asset != "REWARD" || payout.Amount != 10000 || payout.Account != "alice" {
		t.Fatalf("unexpected payout request: %+v", payout)
	}
}

func TestWithdrawMovesDepositAssetOut(t *testing.T) {
	d := newTestService(t, 0, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	if _, err := d.svc.Deposit(ctx, "alice", 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	balance, err := d.svc.Withdraw(ctx, "alice", 200)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if balance != 300 {
		t.Fatalf("balance = %d, want 300", balance)
	}

	if len(d.transferor.out) != 1 {
		t.Fatalf("expected 1 outbound transfer, got %d", len(d.transferor.out))
	}
	if req := d.transferor.out[0]; req.Asset != "STAKE" || req.Amount != 200 {
		t.Fatalf("unexpected outbound request: %+v", req)
	}
}

func TestWithdrawInsufficientLeavesFiguresUntouched(t *testing.T) {
	d := newTestService(t, 100, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	if _, err := d.svc.Deposit(ctx, "alice", 50); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	d.clock.now = 10
	previewBefore, err := d.svc.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}

	if _, err := d.svc.Withdraw(ctx, "alice", 51); !errors.Is(err, accrual.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	balance, err := d.svc.BalanceOf("alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 50 {
		t.Fatalf("balance = %d, want 50", balance)
	}
	if stats := d.svc.Stats(); stats.TotalDeposited != 50 {
		t.Fatalf("total = %d, want 50", stats.TotalDeposited)
	}
	previewAfter, err := d.svc.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if previewAfter != previewBefore {
		t.Fatalf("failed withdraw changed preview: %d -> %d", previewBefore, previewAfter)
	}
}

func TestTransferFailureRollsBackDeposit(t *testing.T) {
	d := newTestService(t, 100, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	d.transferor.failIn = true
	if _, err := d.svc.Deposit(ctx, "alice", 100); !errors.Is(err, transfer.ErrRejected) {
		t.Fatalf("expected transfer rejection, got %v", err)
	}

	balance, err := d.svc.BalanceOf("alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance after failed deposit = %d, want 0", balance)
	}
	if stats := d.svc.Stats(); stats.TotalDeposited != 0 {
		t.Fatalf("total after failed deposit = %d, want 0", stats.TotalDeposited)
	}

	// A later attempt succeeds from a clean slate.
	d.transferor.failIn = false
	if _, err := d.svc.Deposit(ctx, "alice", 100); err != nil {
		t.Fatalf("retry deposit: %v", err)
	}
}

func TestTransferFailureRollsBackClaim(t *testing.T) {
	d := newTestService(t, 100, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	if _, err := d.svc.Deposit(ctx, "alice", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	d.clock.now = 10

	d.transferor.failOut = true
	if _, err := d.svc.Claim(ctx, "alice"); !errors.Is(err, transfer.ErrRejected) {
		t.Fatalf("expected transfer rejection, got %v", err)
	}

	// Nothing was committed: the full amount is still claimable.
	preview, err := d.svc.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview != 1000 {
		t.Fatalf("preview after failed claim = %d, want 1000", preview)
	}

	d.transferor.failOut = false
	claimed, err := d.svc.Claim(ctx, "alice")
	if err != nil {
		t.Fatalf("retry claim: %v", err)
	}
	if claimed != 1000 {
		t.Fatalf("claimed = %d, want 1000", claimed)
	}
}

type failingStore struct {
	Store
	fail bool
}

func (f *failingStore) SaveCheckpoint(ctx context.Context, ledger LedgerRecord, account *AccountRecord) error {
	if f.fail {
		return fmt.Errorf("store unavailable")
	}
	return f.Store.SaveCheckpoint(ctx, ledger, account)
}

func TestStoreFailureRollsBackDeposit(t *testing.T) {
	store := &failingStore{Store: NewMemoryStore()}
	d := newTestService(t, 0, authority.Static{Allow: true}, store)
	ctx := context.Background()

	store.fail = true
	if _, err := d.svc.Deposit(ctx, "alice", 100); err == nil {
		t.Fatalf("expected store failure")
	}
	balance, err := d.svc.BalanceOf("alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance after store failure = %d, want 0", balance)
	}

	store.fail = false
	if _, err := d.svc.Deposit(ctx, "alice", 100); err != nil {
		t.Fatalf("retry deposit: %v", err)
	}
}

func TestSetRateRequiresAuthority(t *testing.T) {
	d := newTestService(t, 77, authority.Static{Allow: false}, nil)

	err := d.svc.SetRewardRate(context.Background(), "mallory", "wrong-key", 9999)
	if !errors.Is(err, authority.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if stats := d.svc.Stats(); stats.RatePerSecond != 77 {
		t.Fatalf("rate changed despite failed authorization: %d", stats.RatePerSecond)
	}
}

func TestSetRateAppliesGoingForwardOnly(t *testing.T) {
	d := newTestService(t, 100, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	if _, err := d.svc.Deposit(ctx, "alice", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// 10s at 100/s, then 10s at 200/s.
	d.clock.now = 10
	if err := d.svc.SetRewardRate(ctx, "admin", "key", 200); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	d.clock.now = 20

	preview, err := d.svc.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview != 3000 {
		t.Fatalf("preview = %d, want 3000", preview)
	}
}

func TestLinearAccrualUnaffectedByIntermediateCheckpoints(t *testing.T) {
	d := newTestService(t, 100, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	if _, err := d.svc.Deposit(ctx, "alice", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Re-setting the same rate forces a checkpoint without changing anything.
	for _, now := range []uint64{25, 50, 75} {
		d.clock.now = now
		if err := d.svc.SetRewardRate(ctx, "admin", "key", 100); err != nil {
			t.Fatalf("checkpoint at %d: %v", now, err)
		}
	}

	d.clock.now = 100
	preview, err := d.svc.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview != 10000 {
		t.Fatalf("preview = %d, want 10000", preview)
	}
}

func TestTotalDepositedEqualsSumOfBalances(t *testing.T) {
	d := newTestService(t, 50, authority.Static{Allow: true}, nil)
	ctx := context.Background()

	accounts := []string{"alice", "bob", "carol"}
	if _, err := d.svc.Deposit(ctx, "alice", 100); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	d.clock.now = 5
	if _, err := d.svc.Deposit(ctx, "bob", 250); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	d.clock.now = 12
	if _, err := d.svc.Deposit(ctx, "carol", 50); err != nil {
		t.Fatalf("deposit carol: %v", err)
	}
	d.clock.now = 30
	if _, err := d.svc.Withdraw(ctx, "bob", 100); err != nil {
		t.Fatalf("withdraw bob: %v", err)
	}
	if _, err := d.svc.Claim(ctx, "alice"); err != nil {
		t.Fatalf("claim alice: %v", err)
	}

	var sum uint64
	for _, account := range accounts {
		balance, err := d.svc.BalanceOf(account)
		if err != nil {
			t.Fatalf("balance %s: %v", account, err)
		}
		sum += balance
	}
	if stats := d.svc.Stats(); stats.TotalDeposited != sum {
		t.Fatalf("total %d != sum of balances %d", stats.TotalDeposited, sum)
	}
}

func TestClaimWithNothingAccruedSkipsTransfer(t *testing.T) {
	d := newTestService(t, 100, authority.Static{Allow: true}, nil)

	claimed, err := d.svc.Claim(context.Background(), "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != 0 {
		t.Fatalf("claimed = %d, want 0", claimed)
	}
	if len(d.transferor.out) != 0 {
		t.Fatalf("unexpected outbound transfer for zero claim")
	}
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	d := newTestService(t, 0, authority.Static{Allow: true}, nil)
	if _, err := d.svc.Deposit(context.Background(), "alice", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestServiceRestoresFromStore(t *testing.T) {
	store := NewMemoryStore()
	d := newTestService(t, 100, authority.Static{Allow: true}, store)
	ctx := context.Background()

	if _, err := d.svc.Deposit(ctx, "alice", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	d.clock.now = 50

	// Rebuild the service from the same store, as after a restart.
	clock := &manualClock{now: 50}
	restored, err := NewService(ctx, Config{DepositAsset: "STAKE", RewardAsset: "REWARD", InitialRate: 1},
		store, &recordingTransferor{}, authority.Static{Allow: true}, nil, clock, logging.Discard())
	if err != nil {
		t.Fatalf("restore service: %v", err)
	}

	balance, err := restored.BalanceOf("alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 100 {
		t.Fatalf("restored balance = %d, want 100", balance)
	}
	// Accrual continued across the restart: 50s at 100/s for the sole depositor.
	preview, err := restored.PreviewClaim("alice")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview != 5000 {
		t.Fatalf("restored preview = %d, want 5000", preview)
	}
	// The persisted initial rate wins over the constructor argument.
	if stats := restored.Stats(); stats.RatePerSecond != 100 {
		t.Fatalf("restored rate = %d, want 100", stats.RatePerSecond)
	}
}
