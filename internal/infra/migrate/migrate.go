package migrate

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	migrationsFS "github.com/Miraines/MoonyAndStarry/tfa-auth/scripts/db/migrations"
)

// Source exposes the embedded migrations.
func Source() (source.Driver, error) {
	return iofs.New(migrationsFS.FS, ".")
}

// Up applies all available database migrations using the provided database handle.
func Up(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "migrate driver")
	}

	src, err := Source()
	if err != nil {
		return errors.Wrap(err, "migrate source")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "migrate init")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrate up")
	}
	return nil
}
