package rules

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rules (
    position    INTEGER NOT NULL,
    shortcut    TEXT PRIMARY KEY,
    prepend     TEXT NOT NULL DEFAULT '',
    postpend    TEXT NOT NULL DEFAULT '',
    text        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_position ON rules(position);
`

// openDB is swapped in tests.
var openDB = sql.Open

// SQLiteBackend stores rules in a SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := openDB("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Load returns the rules ordered by position.
func (b *SQLiteBackend) Load() ([]Rule, error) {
	rows, err := b.db.Query(`SELECT shortcut, prepend, postpend, text FROM rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.Shortcut, &r.Prepend, &r.Postpend, &r.Text); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Save rewrites the table in one transaction.
func (b *SQLiteBackend) Save(rules []Rule) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO rules (position, shortcut, prepend, postpend, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		if _, err := stmt.Exec(i, r.Shortcut, r.Prepend, r.Postpend, r.Text); err != nil {
			return fmt.Errorf("insert rule %q: %w", r.Shortcut, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rules: %w", err)
	}
	return nil
}
