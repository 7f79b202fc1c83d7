// Package database manages the PXI store's connection lifecycle: opening the
// embedded engine in WAL mode, tuning the connection pool, applying the
// schema, and exposing health/maintenance helpers used by the scheduler and
// the Read API's /healthz.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed schemas
var schemaFS embed.FS

// Config configures the store connection.
type Config struct {
	// Path is the local file backing the embedded engine (SQLITE_PATH).
	Path string
	// URL is the operator-facing DSN validated against postgres(ql)?://...
	// It is recorded for observability; the embedded engine is opened
	// against Path regardless, since no third-party Postgres driver is
	// wired into this build (see DESIGN.md).
	URL string
	// PoolMax / PoolMin size the connection pool (DB_POOL_MAX / DB_POOL_MIN).
	PoolMax int
	PoolMin int
}

// ConnectObserver is notified of connection lifecycle events once attached
// with RegisterObserver, letting a caller log/alert on repeated failures
// without the store importing the caller's package.
type ConnectObserver interface {
	OnConnect()
	OnError(err error)
}

// DB wraps a *sql.DB with the pragmas, pool sizing, and observers the PXI
// store needs.
type DB struct {
	conn      *sql.DB
	path      string
	log       zerolog.Logger
	observers []ConnectObserver
}

// New opens the store, applies WAL pragmas, and tunes the pool. It does not
// run migrations; call Migrate separately so callers can control ordering
// relative to other startup steps.
func New(cfg Config, log zerolog.Logger) (*DB, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	connStr := buildConnectionString(absPath)
	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configureConnectionPool(conn, cfg.PoolMax, cfg.PoolMin)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: absPath,
		log:  log.With().Str("component", "database").Logger(),
	}
	db.log.Info().Str("path", absPath).Str("dsn", redactURL(cfg.URL)).Msg("store connected")
	return db, nil
}

func buildConnectionString(path string) string {
	v := make([]string, 0, 4)
	v = append(v, "_pragma=journal_mode(WAL)")
	v = append(v, "_pragma=busy_timeout(5000)")
	v = append(v, "_pragma=synchronous(NORMAL)")
	v = append(v, "_pragma=foreign_keys(ON)")
	return "file:" + path + "?" + strings.Join(v, "&")
}

func configureConnectionPool(conn *sql.DB, poolMax, poolMin int) {
	if poolMax <= 0 {
		poolMax = 25
	}
	if poolMin <= 0 {
		poolMin = 5
	}
	conn.SetMaxOpenConns(poolMax)
	conn.SetMaxIdleConns(poolMin)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)
}

func redactURL(url string) string {
	if url == "" {
		return "(unset)"
	}
	if idx := strings.Index(url, "://"); idx >= 0 {
		return url[:idx] + "://***"
	}
	return "***"
}

// RegisterObserver attaches a ConnectObserver to be notified of connection
// events. Not safe for concurrent use with Notify calls; register all
// observers during startup, before any goroutine uses the DB.
func (db *DB) RegisterObserver(o ConnectObserver) {
	db.observers = append(db.observers, o)
}

func (db *DB) notifyError(err error) {
	for _, o := range db.observers {
		o.OnError(err)
	}
}

// Migrate applies the embedded schema. Statements are idempotent, so this is
// safe to call on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	raw, err := schemaFS.ReadFile("schemas/pxi.sql")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}

	return db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range strings.Split(string(raw), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema statement: %w", err)
			}
		}
		return nil
	})
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			db.notifyError(err)
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// Conn exposes the underlying *sql.DB for packages that need direct
// query/exec access (store, backup job).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the absolute on-disk SQLite file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// HealthCheck pings the database and runs a trivial query, matching the
// Read API's /healthz contract: 200 only when the store responds.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		db.notifyError(err)
		return fmt.Errorf("ping: %w", err)
	}
	var one int
	if err := db.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		db.notifyError(err)
		return fmt.Errorf("trivial query: %w", err)
	}
	for _, o := range db.observers {
		o.OnConnect()
	}
	return nil
}

// Stats reports pool utilization for operator visibility.
type Stats struct {
	OpenConnections int
	InUse           int
	Idle            int
}

// GetStats returns current pool statistics.
func (db *DB) GetStats() Stats {
	s := db.conn.Stats()
	return Stats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
	}
}
