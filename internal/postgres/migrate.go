package postgres

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"sort"

	ierr "github.com/flexprice/bookingpay/internal/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema file
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the embedded schema files in apply order
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list migrations").
			Mark(ierr.ErrSystem)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Failed to read migration %s", name).
				Mark(ierr.ErrSystem)
		}
		migrations = append(migrations, Migration{
			Version: name[len("migrations/"):],
			SQL:     string(body),
		})
	}
	return migrations, nil
}

// Migrate applies every embedded migration that has not been recorded yet.
// Each file runs in its own transaction together with its bookkeeping row.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create schema_migrations").
			Mark(ierr.ErrDatabase)
	}

	migrations, err := Migrations()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var applied bool
		if err := db.GetContext(ctx, &applied,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version); err != nil {
			return ierr.WithError(err).
				WithHintf("Failed to check migration %s", m.Version).
				Mark(ierr.ErrDatabase)
		}
		if applied {
			db.logger.Debugw("migration already applied", "version", m.Version)
			continue
		}

		err := db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			_, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return ierr.WithError(err).
				WithHintf("Failed to apply migration %s", m.Version).
				Mark(ierr.ErrDatabase)
		}
		db.logger.Infow("applied migration", "version", m.Version)
	}
	return nil
}

// WriteMigrations prints the embedded schema without touching the database
func WriteMigrations(w io.Writer) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := io.WriteString(w, "-- "+m.Version+"\n"+m.SQL+"\n"); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrSystem)
		}
	}
	return nil
}
