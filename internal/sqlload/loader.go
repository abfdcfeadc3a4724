// Package sqlload copies CSV records into SQLite tables, one TEXT column per header.
package sqlload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oleg578/swiftcsv/v2"
)

var (
	// ErrNoHeaders is returned by Load when the reader has no header record to name columns.
	ErrNoHeaders = errors.New("input has no header record")
	// ErrTooManyFields is returned by Load for a record wider than the header record.
	ErrTooManyFields = errors.New("record has more fields than headers")
)

const (
	memory = ":memory:"
)

// Open opens the SQLite database at path, creating it if needed.
// ":memory:" opens a private in-memory database.
func Open(path string) (*sql.DB, error) {
	params := url.Values{}
	params.Add("_txlock", "immediate")
	params.Add("_timeout", "5000") // 5s
	if path != memory {
		params.Add("_journal", "wal")
		params.Add("_sync", "normal")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	// Every connection to ":memory:" is its own database, and a single writer is
	// all a bulk load needs anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// Load creates the configured table from r's headers and inserts every remaining
// record. A reader built with WithFieldsPerRecord(-1) may yield records shorter
// than the headers; those are padded with NULL. Under the default width policy a
// short record surfaces as a *swiftcsv.RecordError and aborts the load. It returns
// the number of rows committed; with batching, rows of batches committed before an
// error stay in the table.
func Load(ctx context.Context, db *sql.DB, r *swiftcsv.Reader, configFuncs ...ConfigFunc) (int, error) {
	cfg := &Config{}
	cfg.Table("records")
	for _, cf := range configFuncs {
		cf(cfg)
	}

	headers, err := r.Headers()
	if err != nil {
		return 0, fmt.Errorf("headers: %w", err)
	}
	if headers == nil {
		return 0, ErrNoHeaders
	}
	columns := columnNames(headers)

	if err := setup(ctx, db, cfg, columns); err != nil {
		return 0, fmt.Errorf("setup: %w", err)
	}

	b := &batch{db: db, query: insertQuery(cfg.table, columns)}
	defer b.rollback()

	committed := 0
	args := make([]any, len(columns))
	for rec, err := range r.Records() {
		if err != nil {
			return committed, err
		}
		fields, err := rec.Strings()
		if err != nil {
			return committed, err
		}
		if len(fields) > len(columns) {
			return committed, fmt.Errorf("record %d: %w", rec.Position().Record, ErrTooManyFields)
		}
		for i := range args {
			args[i] = nil
			if i < len(fields) {
				args[i] = fields[i]
			}
		}

		if err := b.insert(ctx, args); err != nil {
			return committed, fmt.Errorf("record %d: insert: %w", rec.Position().Record, err)
		}
		if cfg.batch > 0 && b.rows == cfg.batch {
			n, err := b.commit()
			if err != nil {
				return committed, fmt.Errorf("commit: %w", err)
			}
			committed += n
		}
	}

	n, err := b.commit()
	if err != nil {
		return committed, fmt.Errorf("commit: %w", err)
	}
	return committed + n, nil
}

// batch is an open transaction with its prepared insert.
type batch struct {
	db    *sql.DB
	query string
	tx    *sql.Tx
	stmt  *sql.Stmt
	rows  int
}

func (b *batch) insert(ctx context.Context, args []any) error {
	if b.tx == nil {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, b.query)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		b.tx, b.stmt = tx, stmt
	}
	if _, err := b.stmt.ExecContext(ctx, args...); err != nil {
		return err
	}
	b.rows++
	return nil
}

func (b *batch) commit() (int, error) {
	if b.tx == nil {
		return 0, nil
	}
	_ = b.stmt.Close()
	err := b.tx.Commit()
	n := b.rows
	b.tx, b.stmt, b.rows = nil, nil, 0
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (b *batch) rollback() {
	if b.tx == nil {
		return
	}
	_ = b.stmt.Close()
	_ = b.tx.Rollback()
	b.tx, b.stmt, b.rows = nil, nil, 0
}

func setup(ctx context.Context, db *sql.DB, cfg *Config, columns []string) error {
	if cfg.replace {
		if _, err := db.ExecContext(ctx, "drop table if exists "+quoteIdent(cfg.table)); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " text"
	}
	query := fmt.Sprintf("create table if not exists %s (%s)", quoteIdent(cfg.table), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func insertQuery(table string, columns []string) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quoteIdent(c)
	}
	marks := strings.Repeat(", ?", len(columns))[2:]
	return fmt.Sprintf("insert into %s (%s) values (%s)", quoteIdent(table), strings.Join(names, ", "), marks)
}

// columnNames names blank headers by position and suffixes repeated ones.
func columnNames(headers []string) []string {
	columns := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		seen[key]++
		if n := seen[key]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
			seen[strings.ToLower(name)]++
		}
		columns[i] = name
	}
	return columns
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
