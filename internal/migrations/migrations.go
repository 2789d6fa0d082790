// Package migrations carries the relational schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Source returns the embedded migrations as a golang-migrate source driver.
func Source() (source.Driver, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return src, nil
}

// Run applies every pending up migration to db. The migrate instance is not
// closed because closing it would close db as well.
func Run(db *sql.DB, dbName string, logger *slog.Logger) error {
	const op = "migrations.Run"

	src, err := Source()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	driver, err := pgx.WithInstance(db, &pgx.Config{DatabaseName: dbName})
	if err != nil {
		return fmt.Errorf("%s: create driver: %w", op, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return fmt.Errorf("%s: create instance: %w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: up: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("%s: version: %w", op, err)
	}
	logger.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}
