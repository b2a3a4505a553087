package store

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"apsconnect/internal/config"
)

// DB wraps the pgx stdlib pool shared by every repository.
type DB struct {
	Client *sql.DB
}

// NewDB opens the Postgres pool sized from configuration and verifies
// connectivity with one ping. On a failed ping the pool is still returned,
// so the caller can choose to start degraded and let /healthz report it.
func NewDB(cfg config.App) (*DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnLifetime)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close releases the pool.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
