// Package history keeps an optional local record of approval and purchase
// transactions.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotInitialized = errors.New("history store not initialized")

type Kind string

const (
	KindApprove  Kind = "approve"
	KindPurchase Kind = "purchase"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusReverted  Status = "reverted"
	StatusFailed    Status = "failed"
)

// Record is one transaction the user sent to the sale or the stable token.
type Record struct {
	ChainID   int64
	TxHash    string // empty when the wallet never returned a hash
	Kind      Kind
	Currency  string
	Amount    string
	Account   string
	Status    Status
	Error     string
	CreatedAt time.Time
}

// Store persists Records in sqlite. Rows are unique per chain and tx hash;
// failures without a hash are appended.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) dataDir/history.db.
func Open(dataDir string) (*Store, error) {
	return OpenDSN(filepath.Join(dataDir, "history.db"))
}

// OpenDSN opens a store at the given sqlite DSN. Tests pass ":memory:".
func OpenDSN(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS purchases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chain_id INTEGER NOT NULL,
	tx_hash TEXT,
	kind TEXT NOT NULL,
	currency TEXT NOT NULL,
	amount TEXT NOT NULL,
	account TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS purchases_tx ON purchases (chain_id, tx_hash);
`)
	if err != nil {
		return fmt.Errorf("create purchases table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts r, or updates status and error when the transaction is
// already known.
func (s *Store) Save(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if r.Kind == "" || r.Status == "" {
		return fmt.Errorf("kind and status are required")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	var hash any
	if r.TxHash != "" {
		hash = r.TxHash
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO purchases (chain_id, tx_hash, kind, currency, amount, account, status, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chain_id, tx_hash) DO UPDATE SET
	status=excluded.status,
	error=excluded.error
`, r.ChainID, hash, string(r.Kind), r.Currency, r.Amount, r.Account, string(r.Status), r.Error, r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("persist record: %w", err)
	}
	return nil
}

// List returns the newest records first. An empty account lists all.
func (s *Store) List(ctx context.Context, account string, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT chain_id, COALESCE(tx_hash, ''), kind, currency, amount, account, status, COALESCE(error, ''), created_at
FROM purchases
WHERE (? = '' OR account = ?)
ORDER BY created_at DESC, id DESC
LIMIT ?`, account, account, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var kind, status string
		var created int64
		if err := rows.Scan(&r.ChainID, &r.TxHash, &kind, &r.Currency, &r.Amount, &r.Account, &status, &r.Error, &created); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Kind, r.Status = Kind(kind), Status(status)
		r.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
