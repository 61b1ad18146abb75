// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql, which also works with MariaDB.
//
// Public entry points:
//
//	Open(ctx, cfg)   – pool from a DSN plus optional password override.
//	WithPassword(dsn, pw) – rewrites a DSN's password through mysql.Config.
//
// Open pings before returning, retrying a few times so a web container
// that starts alongside its database does not crash-loop.  Callers should
// Close() the returned *sqlx.DB when done.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Config is the subset of settings Open needs.
type Config struct {
	DSN      string
	Password string
	MaxOpen  int
	MaxIdle  int
}

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// Open returns a *sqlx.DB with a 30-minute connection lifetime.  Zero pool
// sizes mean 15 open and 5 idle.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn, err := WithPassword(cfg.DSN, cfg.Password)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpen == 0 {
		cfg.MaxOpen = 15
	}
	if cfg.MaxIdle == 0 {
		cfg.MaxIdle = 5
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if attempt == pingAttempts {
			break
		}
		zap.S().Warnw("database ping failed, retrying", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pingBackoff):
		}
	}
	db.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", pingAttempts, err)
}

// WithPassword returns dsn with its password replaced by pw.  An empty pw
// leaves dsn untouched.  parseTime is always enabled so DATETIME columns
// scan into time.Time.
func WithPassword(dsn, pw string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	if pw != "" {
		mc.Passwd = pw
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}
