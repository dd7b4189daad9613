// Package storage provides the key-value persistence layer for the weather
// station backend.
//
// All state (users, pending registrations, preferences and sessions) is kept
// under plain string keys in a KV. Two backends exist: an embedded SQLite
// database for single-host deployments and Redis.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// SQLiteKV implements KV on a single SQLite table. Expired rows stay on disk
// until PurgeExpired runs, but are invisible to every read.
type SQLiteKV struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteKV creates a SQLiteKV backed by the given database connection.
// The kv table must already exist (see RunMigrations).
func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db, now: time.Now}
}

// Close closes the underlying database connection.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

// OpenDatabase opens (or creates) a SQLite database at the given path.
// It configures the connection for WAL journal mode and a 5-second busy
// timeout. Parent directories are created if missing.
//
// The returned *sql.DB is limited to a single connection because SQLite
// supports only one concurrent writer.
func OpenDatabase(path string) (*sql.DB, error) {
	// For in-memory databases, skip directory creation.
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %q: %w", dir, err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database %q: %w", path, err)
	}

	slog.Info("opened sqlite database", "path", path)
	return db, nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies any unapplied schema migrations to the database.
// Migration files are named NNN_description.sql and each one runs inside its
// own transaction.
func RunMigrations(db *sql.DB) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	if _, err := db.Exec(createTracker); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	type migrationFile struct {
		version  int
		filename string
	}
	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if v := parseVersion(entry.Name()); v > 0 {
			files = append(files, migrationFile{version: v, filename: entry.Name()})
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].version < files[j].version
	})

	for _, mf := range files {
		if applied[mf.version] {
			continue
		}

		sqlBytes, err := migrationsFS.ReadFile("migrations/" + mf.filename)
		if err != nil {
			return fmt.Errorf("reading migration file %q: %w", mf.filename, err)
		}

		if err := applyMigration(db, mf.version, string(sqlBytes)); err != nil {
			return fmt.Errorf("applying migration %s: %w", mf.filename, err)
		}

		slog.Info("applied migration", "version", mf.version, "file", mf.filename)
	}

	return nil
}

// parseVersion extracts the version number from a migration filename like
// "001_kv.sql" → 1.
func parseVersion(filename string) int {
	prefix, _, _ := strings.Cut(filename, "_")
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return v
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		versions[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migration versions: %w", err)
	}
	return versions, nil
}

// applyMigration executes a single migration's SQL and records its version,
// all within a single transaction.
func applyMigration(db *sql.DB, version int, sql string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(sql); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// live is the predicate shared by every read: a row counts only while it has
// no expiry or its expiry lies in the future.
const live = `(expires_at IS NULL OR expires_at > ?)`

func (s *SQLiteKV) nowMillis() int64 {
	return s.now().UnixMilli()
}

// Get returns the live value at key, or ErrNotFound.
func (s *SQLiteKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND `+live, key, s.nowMillis(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting key %q: %w", key, err)
	}
	return value, nil
}

// Set upserts key with no expiry.
func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	if err := upsert(ctx, s.db, key, value, nil); err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}
	return nil
}

// SetEX upserts key with an expiry ttl from now.
func (s *SQLiteKV) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).UnixMilli()
	if err := upsert(ctx, s.db, key, value, &expiresAt); err != nil {
		return fmt.Errorf("setting key %q with expiry: %w", key, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, key, value string, expiresAt *int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return err
}

// Exists reports whether key holds a live row.
func (s *SQLiteKV) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kv WHERE key = ? AND `+live, key, s.nowMillis(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking key %q: %w", key, err)
	}
	return n > 0, nil
}

// MSet upserts all pairs in one transaction.
func (s *SQLiteKV) MSet(ctx context.Context, pairs map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for key, value := range pairs {
		if err := upsert(ctx, tx, key, value, nil); err != nil {
			return fmt.Errorf("setting key %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing multi-set: %w", err)
	}
	return nil
}

// MGet reads all keys in one query.
func (s *SQLiteKV) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	out := make([]*string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, k)
	}
	args = append(args, s.nowMillis())

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE key IN (`+placeholders+`) AND `+live, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %d keys: %w", len(keys), err)
	}
	defer rows.Close()

	found := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning kv row: %w", err)
		}
		found[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating kv rows: %w", err)
	}

	for i, k := range keys {
		if v, ok := found[k]; ok {
			out[i] = &v
		}
	}
	return out, nil
}

// Expire sets the expiry of a live key.
func (s *SQLiteKV) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE kv SET expires_at = ? WHERE key = ? AND `+live,
		now.Add(ttl).UnixMilli(), key, now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("expiring key %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// Del deletes the live rows of keys.
func (s *SQLiteKV) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, k)
	}
	args = append(args, s.nowMillis())

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE key IN (`+placeholders+`) AND `+live, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting %d keys: %w", len(keys), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// GetDelMSet runs the delete and the upserts in one transaction.
func (s *SQLiteKV) GetDelMSet(ctx context.Context, key string, build func(string) map[string]string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var value string
	err = tx.QueryRowContext(ctx,
		`DELETE FROM kv WHERE key = ? AND `+live+` RETURNING value`, key, s.nowMillis(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("consuming key %q: %w", key, err)
	}

	for k, v := range build(value) {
		if err := upsert(ctx, tx, k, v, nil); err != nil {
			return "", fmt.Errorf("setting key %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing consume of %q: %w", key, err)
	}
	return value, nil
}

// PurgeExpired deletes every row whose expiry has passed and returns how
// many were removed.
func (s *SQLiteKV) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("purging expired keys: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// RunPurger calls PurgeExpired every interval until ctx is cancelled.
func (s *SQLiteKV) RunPurger(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Warn("failed to purge expired keys", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("purged expired keys", "count", n)
			}
		}
	}
}
