package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func Open(databaseURL string, pool PoolConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db := bun.NewDB(sqlDB, pgdialect.New())
	return db, nil
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// EnsureSchema creates the reservation cache table when it does not
// exist yet. The partial unique index backs the upsert-by-remote-id
// conflict target in ReservationRepo.
func EnsureSchema(ctx context.Context, db bun.IDB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
			key uuid PRIMARY KEY,
			remote_id text NOT NULL DEFAULT '',
			service_title text NOT NULL,
			barber_name text NOT NULL,
			client_name text NOT NULL DEFAULT '',
			start_time timestamptz NOT NULL,
			end_time timestamptz NOT NULL,
			version bigint NOT NULL DEFAULT 1,
			created_at timestamptz NOT NULL,
			CHECK (start_time < end_time)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS reservations_remote_id_key
			ON reservations (remote_id) WHERE remote_id <> ''`,
	}
	for _, stmt := range stmts {
		if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
