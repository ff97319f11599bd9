// Package postgres opens the shared database handle and applies the
// embedded migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clockwrk/authcore/internal/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Open connects to Postgres through the pgx stdlib driver and runs the
// embedded goose migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration dialect error: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return db, nil
}
