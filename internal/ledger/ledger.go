// Package ledger records the highest label sequence issued per source tree so
// that two overlapping batches never hand out the same label.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Reservation is one row of the ledger.
type Reservation struct {
	Tree       string    `json:"tree" yaml:"tree"`
	LastIssued int       `json:"last_issued" yaml:"last_issued"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// Open creates or opens the ledger database. Use ":memory:" for a throwaway ledger.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One writer; also keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS label_sequences (
  tree TEXT PRIMARY KEY,
  last_issued INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Reserve claims n sequence numbers for tree and returns the base to count
// from. The base is the larger of the processed folder count and the last
// sequence already issued, so renames that have not happened yet are still
// accounted for.
func (l *Ledger) Reserve(ctx context.Context, tree string, processed, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("invalid reservation size %d", n)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	last, err := lastIssued(ctx, tx, tree)
	if err != nil {
		return 0, err
	}

	base := max(processed, last)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO label_sequences (tree, last_issued, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(tree) DO UPDATE SET last_issued = excluded.last_issued, updated_at = excluded.updated_at`,
		tree, base+n, l.now().UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("failed to record reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return base, nil
}

// Get returns the ledger row for tree. ok is false when nothing was issued yet.
func (l *Ledger) Get(ctx context.Context, tree string) (Reservation, bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT tree, last_issued, updated_at FROM label_sequences WHERE tree = ?`, tree)
	var (
		r         Reservation
		updatedMs int64
	)
	if err := row.Scan(&r.Tree, &r.LastIssued, &updatedMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, false, nil
		}
		return Reservation{}, false, fmt.Errorf("failed to read ledger: %w", err)
	}
	r.UpdatedAt = time.UnixMilli(updatedMs)
	return r, true, nil
}

// List returns every tree in the ledger, most recently used first.
func (l *Ledger) List(ctx context.Context) ([]Reservation, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT tree, last_issued, updated_at FROM label_sequences ORDER BY updated_at DESC, tree`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var (
			r         Reservation
			updatedMs int64
		)
		if err := rows.Scan(&r.Tree, &r.LastIssued, &updatedMs); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		r.UpdatedAt = time.UnixMilli(updatedMs)
		out = append(out, r)
	}
	return out, rows.Err()
}

func lastIssued(ctx context.Context, tx *sql.Tx, tree string) (int, error) {
	var last int
	err := tx.QueryRowContext(ctx,
		`SELECT last_issued FROM label_sequences WHERE tree = ?`, tree).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read last issued label: %w", err)
	}
	return last, nil
}
