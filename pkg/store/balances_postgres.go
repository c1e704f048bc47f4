package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNoBalance is returned when a withdrawal finds no positive balance.
var ErrNoBalance = errors.New("no balance for insuree")

// PostgresBalances keeps insuree balances in Postgres. Row-level locks
// (SELECT ... FOR UPDATE) make the credit and withdraw read-modify-write
// pairs atomic; this is what prevents a double-withdraw racing across two
// engine replicas sharing the database.
//
// The engine itself settles against the in-memory insurance ledger and the
// opaque external value capability; this store is for embedders that need
// balances durable across replicas. Construct it directly over your own
// *sql.DB and mirror settlement events into it.
type PostgresBalances struct {
	db *sql.DB
}

// NewPostgresBalances wraps an open handle. Call Migrate before first use.
func NewPostgresBalances(db *sql.DB) *PostgresBalances {
	return &PostgresBalances{db: db}
}

// Migrate creates the balances table.
func (p *PostgresBalances) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS insuree_balances (
			insuree      TEXT PRIMARY KEY,
			amount_minor BIGINT NOT NULL DEFAULT 0
		)`)
	return err
}

// Credit adds amount to the insuree's balance, creating the row if needed.
func (p *PostgresBalances) Credit(ctx context.Context, insuree string, amountMinor int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT amount_minor FROM insuree_balances WHERE insuree = $1 FOR UPDATE`,
		insuree,
	).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO insuree_balances (insuree, amount_minor) VALUES ($1, $2)`,
			insuree, amountMinor)
	case err == nil:
		_, err = tx.ExecContext(ctx,
			`UPDATE insuree_balances SET amount_minor = $2 WHERE insuree = $1`,
			insuree, current+amountMinor)
	}
	if err != nil {
		return fmt.Errorf("credit %s: %w", insuree, err)
	}
	return tx.Commit()
}

// Withdraw atomically reads and zeroes the insuree's balance, returning the
// amount withdrawn.
func (p *PostgresBalances) Withdraw(ctx context.Context, insuree string) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var amount int64
	err = tx.QueryRowContext(ctx,
		`SELECT amount_minor FROM insuree_balances WHERE insuree = $1 FOR UPDATE`,
		insuree,
	).Scan(&amount)
	if err == sql.ErrNoRows || (err == nil && amount == 0) {
		return 0, fmt.Errorf("%w: %s", ErrNoBalance, insuree)
	}
	if err != nil {
		return 0, fmt.Errorf("withdraw %s: %w", insuree, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE insuree_balances SET amount_minor = 0 WHERE insuree = $1`,
		insuree); err != nil {
		return 0, fmt.Errorf("withdraw %s: %w", insuree, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit withdraw: %w", err)
	}
	return amount, nil
}

// Balance returns the insuree's current balance.
func (p *PostgresBalances) Balance(ctx context.Context, insuree string) (int64, error) {
	var amount int64
	err := p.db.QueryRowContext(ctx,
		`SELECT amount_minor FROM insuree_balances WHERE insuree = $1`,
		insuree,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", insuree, err)
	}
	return amount, nil
}
