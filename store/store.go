// store persists selector matches in sqlite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
)

type Match struct {
	ID       int64
	Source   string
	Query    string
	Selector string
	Position int
	Tag      string
	Text     string
	HTML     string
	Attrs    map[string]string
}

type DB struct {
	stmts map[string]*sql.Stmt
	*sql.DB
}

const driver = "sqlite3-soup"

var migrations = []string{
	`CREATE TABLE matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		query TEXT NOT NULL,
		selector TEXT NOT NULL,
		position INTEGER NOT NULL,
		tag TEXT NOT NULL,
		text TEXT NOT NULL,
		html TEXT NOT NULL,
		attrs TEXT NOT NULL DEFAULT '{}')`,
	`CREATE INDEX matches_source ON matches (source)`,
}

var stmts = map[string]string{
	"insert": `INSERT INTO matches (source, query, selector, position, tag, text, html, attrs)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	"matches": `SELECT id, source, query, selector, position, tag, text, html, attrs
	            FROM matches WHERE source = ? ORDER BY id`,
	"grep": `SELECT id, source, query, selector, position, tag, text, html, attrs
	         FROM matches WHERE re_extract(text, ?, 0) != '' ORDER BY id`,
	"sources": `SELECT DISTINCT source FROM matches ORDER BY source`,
}

var regexps = struct {
	sync.Mutex
	m map[string]*regexp.Regexp
}{m: map[string]*regexp.Regexp{}}

func init() {
	sql.Register(driver, &sqlite3.SQLiteDriver{ConnectHook: connectHook})
}

func Open(name string) (*DB, error) {
	db, err := sql.Open(driver, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", name, err)
	}
	// :memory: databases live and die with their connection
	db.SetMaxOpenConns(1)
	d := &DB{stmts: map[string]*sql.Stmt{}, DB: db}
	if err := d.migrate(migrations); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	for k, sql := range stmts {
		stmt, err := db.Prepare(sql)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to prepare %q: %w", k, err), db.Close())
		}
		d.stmts[k] = stmt
	}
	return d, nil
}

func (d *DB) Close() error {
	errs := []error{}
	for _, stmt := range d.stmts {
		errs = append(errs, stmt.Close())
	}
	return errors.Join(append(errs, d.DB.Close())...)
}

// Insert writes ms in a single transaction and sets their IDs.
func (d *DB) Insert(ctx context.Context, ms []Match) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt := tx.StmtContext(ctx, d.stmts["insert"])
	for i, m := range ms {
		attrs, err := json.Marshal(m.Attrs)
		if err != nil {
			return fmt.Errorf("failed to marshal attrs of %s: %w", m.Source, err)
		} else if m.Attrs == nil {
			attrs = []byte("{}")
		}
		result, err := stmt.ExecContext(ctx, m.Source, m.Query, m.Selector, m.Position, m.Tag, m.Text, m.HTML, string(attrs))
		if err != nil {
			return fmt.Errorf("failed to insert match %d of %s: %w", m.Position, m.Source, err)
		}
		if ms[i].ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) Matches(ctx context.Context, source string) ([]Match, error) {
	return d.query(ctx, "matches", source)
}

// Grep returns all matches whose text matches the regular expression pattern.
func (d *DB) Grep(ctx context.Context, pattern string) ([]Match, error) {
	return d.query(ctx, "grep", pattern)
}

func (d *DB) Sources(ctx context.Context) ([]string, error) {
	rows, err := d.stmts["sources"].QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sources := []string{}
	for rows.Next() {
		s := ""
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (d *DB) query(ctx context.Context, stmt string, args ...any) ([]Match, error) {
	rows, err := d.stmts[stmt].QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ms := []Match{}
	for rows.Next() {
		m, attrs := Match{}, ""
		if err := rows.Scan(&m.ID, &m.Source, &m.Query, &m.Selector, &m.Position, &m.Tag, &m.Text, &m.HTML, &attrs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &m.Attrs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attrs of match %d: %w", m.ID, err)
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

func (d *DB) migrate(migrations []string) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS _migrations (sql TEXT)`); err != nil {
		return fmt.Errorf("failed to create _migrations table: %w", err)
	}
	rows, err := tx.Query(`SELECT sql FROM _migrations ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("failed to query _migrations: %w", err)
	}
	applied := []string{}
	for rows.Next() {
		s := ""
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return err
		}
		applied = append(applied, s)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return fmt.Errorf("failed to read _migrations: %w", err)
	}
	if len(applied) > len(migrations) {
		return fmt.Errorf("database has %d migrations, only %d known", len(applied), len(migrations))
	}
	for i := range applied {
		if applied[i] != migrations[i] {
			return fmt.Errorf("migration %d changed: %q != %q", i, applied[i], migrations[i])
		}
	}
	for _, stmt := range migrations[len(applied):] {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration %q: %w", stmt, err)
		}
		if _, err := tx.Exec("INSERT INTO _migrations (sql) VALUES (?)", stmt); err != nil {
			return fmt.Errorf("failed to record migration %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

func connectHook(c *sqlite3.SQLiteConn) error {
	return c.RegisterFunc("re_extract", regexpExtract, true)
}

func regexpExtract(input, pattern string, i int) (string, error) {
	regexps.Lock()
	defer regexps.Unlock()
	r := regexps.m[pattern]
	if r == nil {
		var err error
		if r, err = regexp.Compile(pattern); err != nil {
			return "", err
		}
		regexps.m[pattern] = r
	}
	if m := r.FindStringSubmatch(input); len(m) > i {
		return m[i], nil
	}
	return "", nil
}
