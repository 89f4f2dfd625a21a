// Package db opens the Postgres pool shared by the user, session and activity repositories.
package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolOptions bounds the connection pool. Zero values fall back to DefaultPoolOptions.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultPoolOptions sizes the pool for a single API instance.
var DefaultPoolOptions = PoolOptions{
	MaxOpenConns:    20,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	PingTimeout:     5 * time.Second,
}

// Open opens a Postgres pool for dsn with DefaultPoolOptions and verifies it with a ping.
// Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	return OpenContext(context.Background(), dsn, DefaultPoolOptions)
}

// OpenContext is Open with an explicit context and pool options. The pool is closed if the ping fails.
func OpenContext(ctx context.Context, dsn string, opts PoolOptions) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: DATABASE_URL is empty")
	}
	opts = opts.withDefaults()

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (o PoolOptions) withDefaults() PoolOptions {
	d := DefaultPoolOptions
	if o.MaxOpenConns > 0 {
		d.MaxOpenConns = o.MaxOpenConns
	}
	if o.MaxIdleConns > 0 {
		d.MaxIdleConns = o.MaxIdleConns
	}
	if o.ConnMaxLifetime > 0 {
		d.ConnMaxLifetime = o.ConnMaxLifetime
	}
	if o.PingTimeout > 0 {
		d.PingTimeout = o.PingTimeout
	}
	return d
}
