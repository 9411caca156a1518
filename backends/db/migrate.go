package db

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dselans/blastbeat-albums/clog"
	"github.com/dselans/blastbeat-albums/migrations"
)

// migrationLockID is an arbitrary key for pg_advisory_xact_lock so that
// replicas starting at the same time apply each migration once.
const migrationLockID = 7355608

type migration struct {
	Name  string   // directory name, recorded in schema_migrations
	Files []string // .sql files in lexical order
}

// Migrate applies every migration directory under migrations.FS that is not
// yet recorded in schema_migrations. Each directory runs in its own
// transaction.
func (d *DB) Migrate(ctx context.Context, log clog.ICustomLog) error {
	logger := log.With(zap.String("method", "Migrate"))
	logger.Info("Running database migrations")

	if _, err := d.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`); err != nil {
		return errors.Wrap(err, "failed to create migrations table")
	}

	pending, err := loadMigrations(migrations.FS)
	if err != nil {
		return errors.Wrap(err, "failed to load migration files")
	}

	for _, m := range pending {
		applied, err := d.applyMigration(ctx, m)
		if err != nil {
			return errors.Wrapf(err, "migration '%s' failed", m.Name)
		}

		if applied {
			logger.Info("Migration applied", zap.String("migration", m.Name), zap.Strings("files", m.Files))
		} else {
			logger.Debug("Migration already applied", zap.String("migration", m.Name))
		}
	}

	logger.Info("All migrations completed")

	return nil
}

func (d *DB) applyMigration(ctx context.Context, m migration) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, errors.Wrap(err, "failed to obtain migration lock")
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)", m.Name).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "failed to check migration state")
	}

	if exists {
		return false, nil
	}

	for _, file := range m.Files {
		content, err := migrations.FS.ReadFile(path.Join(m.Name, file))
		if err != nil {
			return false, errors.Wrapf(err, "failed to read '%s'", file)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return false, errors.Wrapf(err, "failed to execute '%s'", file)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (name, applied_at) VALUES ($1, NOW())", m.Name); err != nil {
		return false, errors.Wrap(err, "failed to record migration")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit")
	}

	return true, nil
}

// loadMigrations returns one migration per top-level directory of fsys,
// ordered by directory name.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	out := make([]migration, 0)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		files, err := fs.ReadDir(fsys, entry.Name())
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read migration dir '%s'", entry.Name())
		}

		m := migration{Name: entry.Name()}

		for _, f := range files {
			if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
				m.Files = append(m.Files, f.Name())
			}
		}

		if len(m.Files) == 0 {
			continue
		}

		sort.Strings(m.Files)
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out, nil
}
