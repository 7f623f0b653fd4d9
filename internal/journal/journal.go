// Package journal provides a write-only SQLite record of completed trades.
// The journal is audit output: nothing in the trading core ever reads it
// back, and session state is never persisted.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "bracket-trader/internal/errors"

	"bracket-trader/internal/models"
)

// SQLiteJournal records completed round trips in SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	symbol string
	mu     sync.Mutex
	closed bool
}

// DefaultPath returns the default journal location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "trades.db"
	}
	return filepath.Join(home, ".config", "bracket-trader", "trades.db")
}

// Open opens (creating if needed) the journal at path for one symbol.
func Open(path, symbol string) (*SQLiteJournal, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	j := &SQLiteJournal{db: db, symbol: symbol}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		closed_at DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		avg_entry REAL NOT NULL,
		exit_price REAL NOT NULL,
		exit_reason TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record inserts one completed trade.
func (j *SQLiteJournal) Record(trade models.CompletedTrade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return apperrors.ErrJournalClosed
	}

	_, err := j.db.Exec(
		`INSERT INTO trades (closed_at, symbol, direction, quantity, avg_entry, exit_price, exit_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), j.symbol, string(trade.Direction), trade.Quantity,
		trade.AvgEntry, trade.ExitPrice, trade.ExitReason,
	)
	if err != nil {
		return fmt.Errorf("recording trade: %w", err)
	}
	return nil
}

// Entry is one journal row, for listing.
type Entry struct {
	ClosedAt   time.Time
	Symbol     string
	Direction  string
	Quantity   int
	AvgEntry   float64
	ExitPrice  float64
	ExitReason string
}

// Recent returns the most recent n entries, newest first. Listing serves
// the CLI only; the trading core never calls it.
func (j *SQLiteJournal) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := j.db.Query(
		`SELECT closed_at, symbol, direction, quantity, avg_entry, exit_price, exit_reason
		 FROM trades ORDER BY closed_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ClosedAt, &e.Symbol, &e.Direction, &e.Quantity,
			&e.AvgEntry, &e.ExitPrice, &e.ExitReason); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database.
func (j *SQLiteJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
