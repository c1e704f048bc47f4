// Package store persists engine state: policy and airline snapshots in
// SQLite, insuree balances in Postgres for deployments that need durable
// settlement records.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/surety/pkg/flight"
	"github.com/Mindburn-Labs/surety/pkg/governance"
	"github.com/Mindburn-Labs/surety/pkg/insurance"
)

// SQLiteStore snapshots policies and airlines into a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore wraps an existing handle and migrates it.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS policies (
		airline       TEXT NOT NULL,
		flight        TEXT NOT NULL,
		ts            INTEGER NOT NULL,
		insuree       TEXT NOT NULL,
		premium_minor INTEGER NOT NULL,
		credited      INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (airline, flight, ts, insuree)
	);
	CREATE TABLE IF NOT EXISTS airlines (
		address    TEXT PRIMARY KEY,
		registered INTEGER NOT NULL DEFAULT 0,
		funded     INTEGER NOT NULL DEFAULT 0
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// SavePolicy upserts one policy row.
func (s *SQLiteStore) SavePolicy(ctx context.Context, p insurance.Policy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (airline, flight, ts, insuree, premium_minor, credited)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (airline, flight, ts, insuree)
		DO UPDATE SET premium_minor = excluded.premium_minor, credited = excluded.credited`,
		p.FlightKey.Airline, p.FlightKey.Flight, p.FlightKey.Timestamp,
		p.Insuree, p.PremiumMinor, boolToInt(p.Credited))
	if err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	return nil
}

// LoadPolicies returns every stored policy.
func (s *SQLiteStore) LoadPolicies(ctx context.Context) ([]insurance.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT airline, flight, ts, insuree, premium_minor, credited
		FROM policies ORDER BY airline, flight, ts, insuree`)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	defer rows.Close()

	var out []insurance.Policy
	for rows.Next() {
		var p insurance.Policy
		var key flight.Key
		var credited int
		if err := rows.Scan(&key.Airline, &key.Flight, &key.Timestamp,
			&p.Insuree, &p.PremiumMinor, &credited); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		p.FlightKey = key
		p.Credited = credited != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveAirline upserts one airline row.
func (s *SQLiteStore) SaveAirline(ctx context.Context, a governance.Airline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO airlines (address, registered, funded)
		VALUES (?, ?, ?)
		ON CONFLICT (address)
		DO UPDATE SET registered = excluded.registered, funded = excluded.funded`,
		a.Address, boolToInt(a.Registered), boolToInt(a.Funded))
	if err != nil {
		return fmt.Errorf("save airline: %w", err)
	}
	return nil
}

// LoadAirlines returns every stored airline.
func (s *SQLiteStore) LoadAirlines(ctx context.Context) ([]governance.Airline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, registered, funded FROM airlines ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("load airlines: %w", err)
	}
	defer rows.Close()

	var out []governance.Airline
	for rows.Next() {
		var a governance.Airline
		var registered, funded int
		if err := rows.Scan(&a.Address, &registered, &funded); err != nil {
			return nil, fmt.Errorf("scan airline: %w", err)
		}
		a.Registered = registered != 0
		a.Funded = funded != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
