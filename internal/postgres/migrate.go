package postgres

import (
	"database/sql"

	ierr "github.com/cartloop/recurbill/internal/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations opens a connection to the database and runs all pending
// migrations from the given directory.
func RunMigrations(databaseURL, migrationsDir string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to open database connection").
			Mark(ierr.ErrDatabase)
	}
	defer db.Close()

	if err := goose.Up(db, migrationsDir); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to run migrations").
			Mark(ierr.ErrDatabase)
	}

	return nil
}
