package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/jo-ticketing/internal/config"
)

// dsn builds the driver DSN.  DATETIME columns scan into UTC time.Time and
// the connection speaks utf8mb4 so accented client names round-trip.
func dsn(cfg config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Collation = "utf8mb4_unicode_ci"
	mc.Timeout = 5 * time.Second
	return mc.FormatDSN()
}

// Open connects to MySQL, sizes the pool from cfg and pings until ctx
// expires.  The server usually starts alongside the database container, so
// the first attempts are expected to fail.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(cfg))
	if err != nil {
		return nil, err
	}
	maxOpen := cfg.DBMaxOpen
	if maxOpen < 1 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(cfg.DBConnLifetime)

	for {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("database: ping %s: %w", cfg.DBHost, err)
		case <-time.After(time.Second):
		}
	}
}
