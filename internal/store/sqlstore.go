package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const defaultTokenTable = "google_ads_tokens"

// Dialect selects the SQL flavour used by SQLStore.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStoreConfig captures what is needed to open a SQL-backed store.
type SQLStoreConfig struct {
	Dialect Dialect
	// DSN is a Postgres connection string or a SQLite file path.
	DSN    string
	Schema string
	Table  string
}

// SQLStore keeps the entries as key/value rows in a single table.
type SQLStore struct {
	db  *sql.DB
	cfg SQLStoreConfig
	mu  sync.Mutex
}

// NewSQLStore opens the database, verifies connectivity and creates the table.
func NewSQLStore(ctx context.Context, cfg SQLStoreConfig) (*SQLStore, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s store: DSN is required", cfg.Dialect)
	}
	if cfg.Table == "" {
		cfg.Table = defaultTokenTable
	}

	var driver string
	switch cfg.Dialect {
	case DialectPostgres:
		driver = "pgx"
	case DialectSQLite:
		driver = "sqlite"
		if cfg.Schema != "" {
			return nil, fmt.Errorf("sqlite store: schemas are not supported")
		}
	default:
		return nil, fmt.Errorf("sql store: unknown dialect %q", cfg.Dialect)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s store: open database connection: %w", cfg.Dialect, err)
	}
	if cfg.Dialect == DialectSQLite {
		// a single connection serialises writers and avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s store: ping database: %w", cfg.Dialect, err)
	}

	s := &SQLStore{db: db, cfg: cfg}
	if err = s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the token table (and schema when provided).
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("%s store: create schema: %w", s.cfg.Dialect, err)
		}
	}
	timestamp := "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	if s.cfg.Dialect == DialectSQLite {
		timestamp = "TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			entry_key TEXT PRIMARY KEY,
			entry_value TEXT NOT NULL,
			updated_at %s
		)
	`, s.fullTableName(), timestamp)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s store: create table: %w", s.cfg.Dialect, err)
	}
	return nil
}

// Get implements auth.Store.
func (s *SQLStore) Get(ctx context.Context) (*auth.TokenSet, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT entry_key, entry_value FROM %s", s.fullTableName()))
	if err != nil {
		return nil, fmt.Errorf("%s store: query entries: %w", s.cfg.Dialect, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make(map[string]string, 3)
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%s store: scan entry: %w", s.cfg.Dialect, err)
		}
		entries[key] = value
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s store: iterate entries: %w", s.cfg.Dialect, err)
	}
	return auth.TokenSetFromEntries(entries)
}

// Put implements auth.Store. The previous rows are replaced in one transaction.
func (s *SQLStore) Put(ctx context.Context, t *auth.TokenSet) error {
	if t == nil {
		return errNilTokenSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s store: begin transaction: %w", s.cfg.Dialect, err)
	}
	defer func() { _ = tx.Rollback() }()

	table := s.fullTableName()
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("%s store: delete entries: %w", s.cfg.Dialect, err)
	}
	insert := fmt.Sprintf(`
		INSERT INTO %s (entry_key, entry_value, updated_at)
		VALUES (%s, %s, CURRENT_TIMESTAMP)
		ON CONFLICT (entry_key)
		DO UPDATE SET entry_value = EXCLUDED.entry_value, updated_at = CURRENT_TIMESTAMP
	`, table, s.placeholder(1), s.placeholder(2))
	for key, value := range t.Entries() {
		if _, err = tx.ExecContext(ctx, insert, key, value); err != nil {
			return fmt.Errorf("%s store: upsert %s: %w", s.cfg.Dialect, key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s store: commit: %w", s.cfg.Dialect, err)
	}
	return nil
}

// Clear implements auth.Store.
func (s *SQLStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.fullTableName())); err != nil {
		return fmt.Errorf("%s store: delete entries: %w", s.cfg.Dialect, err)
	}
	return nil
}

func (s *SQLStore) placeholder(n int) string {
	if s.cfg.Dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) fullTableName() string {
	if strings.TrimSpace(s.cfg.Schema) == "" {
		return quoteIdentifier(s.cfg.Table)
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(s.cfg.Table)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
