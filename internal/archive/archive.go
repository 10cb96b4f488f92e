// Package archive mirrors appended product records into a SQL database so
// that every brand's snapshots can be queried together.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"novawatch/internal/brandtable"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Config selects the archive database. A `file` is opened with the embedded
// SQLite driver, a `url` (libsql://, https://) with the libSQL client. The
// archive is disabled when neither is set.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (c Config) Enabled() bool {
	return c.File != "" || c.Url != ""
}

func (c Config) open() (*sql.DB, error) {
	if c.Url != "" {
		dsn := c.Url
		if c.AuthToken != "" {
			parsed, err := url.Parse(c.Url)
			if err != nil {
				return nil, fmt.Errorf("parse archive url: %w", err)
			}
			query := parsed.Query()
			query.Set("authToken", c.AuthToken)
			parsed.RawQuery = query.Encode()
			dsn = parsed.String()
		}
		return sql.Open("libsql", dsn)
	}

	if c.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}
	err := os.MkdirAll(filepath.Dir(c.File), 0o755)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", c.File)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

//go:embed schema.sql
var schema string

type Archive struct {
	db *sql.DB
}

// Open connects to the archive and makes sure its schema exists.
func Open(ctx context.Context, c Config) (*Archive, error) {
	db, err := c.open()
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err = db.ExecContext(ctx, stmt)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create archive schema: %w", err)
		}
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func insertStatement() string {
	cols := []string{"brand"}
	for _, c := range brandtable.Columns {
		cols = append(cols, fmt.Sprintf("%q", c))
	}
	cols = append(cols, "archived_on")

	placeholders := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	return fmt.Sprintf(
		"INSERT OR IGNORE INTO products (%s) VALUES (%s)",
		strings.Join(cols, ","),
		placeholders,
	)
}

// Insert stores rows for a brand, rows whose (brand, code) is already
// archived are skipped. It returns the number of rows actually inserted.
func (a *Archive) Insert(ctx context.Context, brand, date string, rows []brandtable.Row) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertStatement())
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		args := make([]any, 0, len(brandtable.Columns)+2)
		args = append(args, brand)
		for _, c := range brandtable.Columns {
			args = append(args, row[c])
		}
		args = append(args, date)

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("archive %s: %w", row.Code(), err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			inserted += int(n)
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Count returns how many records are archived for a brand.
func (a *Archive) Count(ctx context.Context, brand string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE brand = ?", brand).Scan(&n)
	return n, err
}
