// Package storage caches normalized datasets in SQLite.
//
// Each dataset is stored under a name ("billionaires", "TECH", "AAPL", ...) and is
// replaced wholesale when reloaded. Reads of a dataset that was never stored return
// ErrNotFound, which callers surface as a load failure.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/rewired-gh/wealthstack/internal/models"
)

// ErrNotFound is returned for datasets that have not been stored.
var ErrNotFound = errors.New("dataset not found")

// Kind distinguishes record datasets from market-cap datasets.
type Kind string

const (
	KindRecords Kind = "records"
	KindTicker  Kind = "ticker"
)

// Dataset describes one stored dataset.
type Dataset struct {
	Name     string    `json:"name"`
	Kind     Kind      `json:"kind"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		name      TEXT PRIMARY KEY,
		kind      TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		loaded_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS records (
		dataset  TEXT NOT NULL,
		seq      INTEGER NOT NULL,
		year     INTEGER NOT NULL,
		category TEXT NOT NULL,
		metric   REAL NOT NULL,
		name     TEXT NOT NULL,
		PRIMARY KEY (dataset, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS ticker_rows (
		dataset    TEXT NOT NULL,
		year       INTEGER NOT NULL,
		market_cap REAL NOT NULL,
		change     REAL,
		PRIMARY KEY (dataset, year)
	)`,
}

// Store is a SQLite-backed dataset cache. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. ":memory:" gives a private
// in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// an in-memory database lives and dies with its connection
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutRecords replaces the records of a dataset.
func (s *Store) PutRecords(ctx context.Context, dataset string, records []models.Record) error {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("invalid record %d: %w", i, err)
		}
	}

	return s.replace(ctx, dataset, KindRecords, len(records), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO records (dataset, seq, year, category, metric, name) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, r := range records {
			if _, err := stmt.ExecContext(ctx, dataset, i, r.Year, string(r.Category), r.Metric, r.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

// Records returns a dataset's records in insertion order.
func (s *Store) Records(ctx context.Context, dataset string) ([]models.Record, error) {
	if err := s.requireKind(ctx, dataset, KindRecords); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT year, category, metric, name FROM records WHERE dataset = ? ORDER BY seq`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var r models.Record
		var category string
		if err := rows.Scan(&r.Year, &category, &r.Metric, &r.Name); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if r.Category, err = models.ParseCategory(category); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", dataset, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// PutTickerRows replaces the rows of a market-cap dataset.
func (s *Store) PutTickerRows(ctx context.Context, dataset string, tickerRows []models.TickerRow) error {
	for i := range tickerRows {
		if err := tickerRows[i].Validate(); err != nil {
			return fmt.Errorf("invalid row %d: %w", i, err)
		}
	}

	return s.replace(ctx, dataset, KindTicker, len(tickerRows), func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO ticker_rows (dataset, year, market_cap, change) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range tickerRows {
			var change sql.NullFloat64
			if r.Change != nil {
				change = sql.NullFloat64{Float64: *r.Change, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, dataset, r.Year, r.MarketCap, change); err != nil {
				return err
			}
		}
		return nil
	})
}

// TickerRows returns a market-cap dataset sorted by year.
func (s *Store) TickerRows(ctx context.Context, dataset string) ([]models.TickerRow, error) {
	if err := s.requireKind(ctx, dataset, KindTicker); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT year, market_cap, change FROM ticker_rows WHERE dataset = ? ORDER BY year`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticker rows: %w", err)
	}
	defer rows.Close()

	out := []models.TickerRow{}
	for rows.Next() {
		var r models.TickerRow
		var change sql.NullFloat64
		if err := rows.Scan(&r.Year, &r.MarketCap, &change); err != nil {
			return nil, fmt.Errorf("failed to scan ticker row: %w", err)
		}
		if change.Valid {
			v := change.Float64
			r.Change = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Datasets lists every stored dataset by name.
func (s *Store) Datasets(ctx context.Context) ([]Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, kind, row_count, loaded_at FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	out := []Dataset{}
	for rows.Next() {
		var d Dataset
		var kind string
		var loadedAt int64
		if err := rows.Scan(&d.Name, &kind, &d.Rows, &loadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		d.Kind = Kind(kind)
		d.LoadedAt = time.Unix(0, loadedAt).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a dataset and its rows. Deleting a dataset that was never stored
// is not an error.
func (s *Store) Delete(ctx context.Context, dataset string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM records WHERE dataset = ?`,
		`DELETE FROM ticker_rows WHERE dataset = ?`,
		`DELETE FROM datasets WHERE name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, dataset); err != nil {
			return fmt.Errorf("failed to delete dataset %s: %w", dataset, err)
		}
	}
	return tx.Commit()
}

func (s *Store) replace(ctx context.Context, dataset string, kind Kind, n int, insert func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM records WHERE dataset = ?`,
		`DELETE FROM ticker_rows WHERE dataset = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, dataset); err != nil {
			return fmt.Errorf("failed to clear dataset %s: %w", dataset, err)
		}
	}
	if err := insert(tx); err != nil {
		return fmt.Errorf("failed to store dataset %s: %w", dataset, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO datasets (name, kind, row_count, loaded_at) VALUES (?, ?, ?, ?)`,
		dataset, string(kind), n, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to register dataset %s: %w", dataset, err)
	}
	return tx.Commit()
}

func (s *Store) requireKind(ctx context.Context, dataset string, want Kind) error {
	var kind string
	err := s.db.QueryRowContext(ctx, `SELECT kind FROM datasets WHERE name = ?`, dataset).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", dataset, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up dataset %s: %w", dataset, err)
	}
	if Kind(kind) != want {
		return fmt.Errorf("dataset %s holds %s, not %s", dataset, kind, want)
	}
	return nil
}
