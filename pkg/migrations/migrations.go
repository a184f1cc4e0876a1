// Package migrations runs the NetPad database schema migrations.
//
// Migration files live in sql/ and follow the
// <version>_<name>.<up|down>.sql naming convention. The embedded set is
// the default source; an alternate fs.FS (for example os.DirFS over a
// checkout) can be supplied for development.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embedded embed.FS

// Default returns the migration set compiled into the binary.
func Default() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		// The sql directory is part of the package source.
		panic(err)
	}
	return sub
}

// Migration is a single schema change in one direction.
type Migration struct {
	Version   string
	Name      string
	Direction string // "up" or "down"
	Path      string
}

// Record is a row of the schema_migrations table.
type Record struct {
	Version   string
	AppliedAt time.Time
}

// Runner applies migrations from a source filesystem to a database.
type Runner struct {
	db  *sql.DB
	src fs.FS
}

// NewRunner creates a Runner over the given migration source.
func NewRunner(db *sql.DB, src fs.FS) *Runner {
	return &Runner{db: db, src: src}
}

// EnsureTable creates the schema_migrations bookkeeping table.
func (r *Runner) EnsureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

// Applied returns all applied migrations in version order.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Pending returns migrations present in the source but not yet applied.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	available, err := Load(r.src, "up")
	if err != nil {
		return nil, err
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	appliedSet := make(map[string]bool, len(applied))
	for _, rec := range applied {
		appliedSet[rec.Version] = true
	}

	var pending []Migration
	for _, m := range available {
		if !appliedSet[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Up applies all pending migrations and returns the ones it ran.
func (r *Runner) Up(ctx context.Context) ([]Migration, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return nil, err
	}

	pending, err := r.Pending(ctx)
	if err != nil {
		return nil, err
	}

	for i, m := range pending {
		if err := r.apply(ctx, m); err != nil {
			return pending[:i], fmt.Errorf("migration %s: %w", m.Version, err)
		}
	}
	return pending, nil
}

// Down rolls back the most recently applied migration. It returns the
// rolled-back migration, or nil when nothing is applied.
func (r *Runner) Down(ctx context.Context) (*Migration, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}
	last := applied[len(applied)-1].Version

	downs, err := Load(r.src, "down")
	if err != nil {
		return nil, err
	}
	var target *Migration
	for i := range downs {
		if downs[i].Version == last {
			target = &downs[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("no down migration for version %s", last)
	}

	content, err := fs.ReadFile(r.src, target.Path)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return nil, fmt.Errorf("rollback %s: %w", target.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_migrations WHERE version = $1`, target.Version); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return target, nil
}

// apply runs a single up migration inside a transaction.
func (r *Runner) apply(ctx context.Context, m Migration) error {
	content, err := fs.ReadFile(r.src, m.Path)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

// Load returns the migrations in src for one direction, sorted by version.
func Load(src fs.FS, direction string) ([]Migration, error) {
	suffix := "." + direction + ".sql"

	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("read migration source: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), suffix)
		version, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		migrations = append(migrations, Migration{
			Version:   version,
			Name:      name,
			Direction: direction,
			Path:      entry.Name(),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
