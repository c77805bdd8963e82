package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const (
	createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`
	selectVersions = `SELECT version FROM schema_migrations`
	insertVersion  = `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`
)

type Runner struct {
	db         *sql.DB
	log        *slog.Logger
	migrations []Migration
	now        func() time.Time
}

func NewRunner(db *sql.DB, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		db:         db,
		log:        log,
		migrations: All(),
		now:        time.Now,
	}
}

// Up applies every migration that is not recorded yet and returns the
// versions it applied.
func (r *Runner) Up(ctx context.Context) ([]int, error) {
	const op = "storage.migrations.Up"

	if _, err := r.db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	done, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var applied []int
	for _, m := range r.migrations {
		if done[m.Version] {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return applied, fmt.Errorf("%s: migration %d (%s): %w", op, m.Version, m.Name, err)
		}
		r.log.Info("migration applied", slog.Int("version", m.Version), slog.String("name", m.Name))
		applied = append(applied, m.Version)
	}

	return applied, nil
}

func (r *Runner) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, selectVersions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if isDuplicateColumn(err) {
				r.log.Debug("column already present", slog.Int("version", m.Version))
				continue
			}
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, insertVersion, m.Version, m.Name, r.now().UTC().Format("2006-01-02 15:04:05")); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
