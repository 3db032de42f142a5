package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// vaultID keys the single ledger row; one vault per deployment.
const vaultID = "default"

// PostgresStore persists vault state in PostgreSQL. Memory stays authoritative
// during an operation; the store is the durable snapshot written before every
// in-memory commit.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the vault tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS vault_ledger (
            vault_id        TEXT PRIMARY KEY,
            total_deposited NUMERIC(20,0) NOT NULL,
            reward_per_unit NUMERIC(78,0) NOT NULL,
            last_checkpoint BIGINT NOT NULL,
            rate_per_second NUMERIC(20,0) NOT NULL
        );
        CREATE TABLE IF NOT EXISTS vault_accounts (
            account_id           TEXT PRIMARY KEY,
            balance              NUMERIC(20,0) NOT NULL,
            claimable            NUMERIC(20,0) NOT NULL,
            accumulator_snapshot NUMERIC(78,0) NOT NULL
        );`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure vault schema: %w", err)
	}
	return nil
}

// Load reads the ledger row and every account row. A nil ledger record means
// the vault has never been initialized.
func (s *PostgresStore) Load(ctx context.Context) (*LedgerRecord, []AccountRecord, error) {
	const ledgerQuery = `
        SELECT total_deposited::text, reward_per_unit::text, last_checkpoint, rate_per_second::text
        FROM vault_ledger WHERE vault_id = $1`

	var totalStr, accStr, rateStr string
	var last int64
	if err := s.db.QueryRow(ctx, ledgerQuery, vaultID).Scan(&totalStr, &accStr, &last, &rateStr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}

	ledger := &LedgerRecord{RewardPerUnit: accStr, LastCheckpoint: uint64(last)}
	var err error
	if ledger.TotalDeposited, err = parseUint(totalStr); err != nil {
		return nil, nil, fmt.Errorf("load ledger total: %w", err)
	}
	if ledger.RatePerSecond, err = parseUint(rateStr); err != nil {
		return nil, nil, fmt.Errorf("load ledger rate: %w", err)
	}

	const accountsQuery = `
        SELECT account_id, balance::text, claimable::text, accumulator_snapshot::text
        FROM vault_accounts`
	rows, err := s.db.Query(ctx, accountsQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AccountRecord
	for rows.Next() {
		var rec AccountRecord
		var balStr, claimStr string
		if err := rows.Scan(&rec.ID, &balStr, &claimStr, &rec.Snapshot); err != nil {
			return nil, nil, fmt.Errorf("scan account: %w", err)
		}
		if rec.Balance, err = parseUint(balStr); err != nil {
			return nil, nil, fmt.Errorf("account %s balance: %w", rec.ID, err)
		}
		if rec.Claimable, err = parseUint(claimStr); err != nil {
			return nil, nil, fmt.Errorf("account %s claimable: %w", rec.ID, err)
		}
		accounts = append(accounts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load accounts: %w", err)
	}
	return ledger, accounts, nil
}

// SaveCheckpoint upserts the ledger row and, when present, the touched account
// row within one transaction.
func (s *PostgresStore) SaveCheckpoint(ctx context.Context, ledger LedgerRecord, account *AccountRecord) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	const ledgerUpsert = `
        INSERT INTO vault_ledger (vault_id, total_deposited, reward_per_unit, last_checkpoint, rate_per_second)
        VALUES ($1, $2::numeric, $3::numeric, $4, $5::numeric)
        ON CONFLICT (vault_id) DO UPDATE SET
            total_deposited = EXCLUDED.total_deposited,
            reward_per_unit = EXCLUDED.reward_per_unit,
            last_checkpoint = EXCLUDED.last_checkpoint,
            rate_per_second = EXCLUDED.rate_per_second`
	if _, err := tx.Exec(ctx, ledgerUpsert, vaultID,
		formatUint(ledger.TotalDeposited), ledger.RewardPerUnit,
		int64(ledger.LastCheckpoint), formatUint(ledger.RatePerSecond)); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	if account != nil {
		const accountUpsert = `
            INSERT INTO vault_accounts (account_id, balance, claimable, accumulator_snapshot)
            VALUES ($1, $2::numeric, $3::numeric, $4::numeric)
            ON CONFLICT (account_id) DO UPDATE SET
                balance = EXCLUDED.balance,
                claimable = EXCLUDED.claimable,
                accumulator_snapshot = EXCLUDED.accumulator_snapshot`
		if _, err := tx.Exec(ctx, accountUpsert, account.ID,
			formatUint(account.Balance), formatUint(account.Claimable), account.Snapshot); err != nil {
			return fmt.Errorf("save account %s: %w", account.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}
