package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/homehub/cast-server-go/internal/config"
)

type DB struct {
	*sqlx.DB
}

func Connect(databaseURL string) (*DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(config.DBConnMaxLifetime)

	return &DB{db}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS pairing_events (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	device_info JSONB NOT NULL DEFAULT '{}'::jsonb,
	client_ip   TEXT NOT NULL DEFAULT '',
	paired_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pairing_events_paired_at_idx ON pairing_events (paired_at DESC);
CREATE INDEX IF NOT EXISTS pairing_events_session_id_idx ON pairing_events (session_id);
`

// EnsureSchema creates the pairing history table if it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
