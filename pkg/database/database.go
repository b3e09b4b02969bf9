// Package database wraps database/sql with the driver-selection and
// connection-pool conventions shared by the identity, catalog, and review
// stores; each store creates its own schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Conn wraps a single *sql.DB with the connection-pool defaults appropriate
// for the configured driver.
type Conn struct {
	db     *sql.DB
	driver string
}

// Open opens a database connection for the given logical driver name
// ("sqlite3", "postgres", "mysql") and DSN, and verifies connectivity.
func Open(driver, dsn string) (*Conn, error) {
	name := DriverName(driver)

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s database: %w", name, err)
	}

	if name == "sqlite3" {
		// SQLite has a single writer; a small pool avoids "database is locked" churn.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	return &Conn{db: db, driver: name}, nil
}

// DB returns the underlying *sql.DB for callers that need raw access.
func (c *Conn) DB() *sql.DB { return c.db }

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.db.Close() }

// ExecContext is a thin pass-through kept for symmetry with QueryContext;
// present so call sites read uniformly regardless of statement type.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// QueryContext is a thin pass-through to the underlying pool.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext is a thin pass-through to the underlying pool.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction on the underlying pool.
func (c *Conn) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// DriverName maps the platform's logical database type names onto the
// driver names registered with database/sql.
func DriverName(dbType string) string {
	switch dbType {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3", "":
		return "sqlite3"
	default:
		return dbType
	}
}
