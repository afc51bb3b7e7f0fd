package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations"

	// The SQL files use Postgres enums, triggers and named CHECK constraints.
	dialect = "postgres"
)

// Run validates dir and then executes a goose command (up, down, status) against db.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if _, err := prepare(db, dir); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to targetVersion, which must be 0 or the
// version of a migration in dir.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	migrations, err := prepare(db, dir)
	if err != nil {
		return err
	}
	target, err := resolveTarget(migrations, targetVersion)
	if err != nil {
		return err
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

func prepare(db *sql.DB, dir string) ([]Migration, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if err := ValidateDir(dir); err != nil {
		return nil, fmt.Errorf("validate migrations: %w", err)
	}
	migrations, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return migrations, nil
}

func resolveTarget(migrations []Migration, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("target version is required")
	}
	target, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", raw, err)
	}
	if target == 0 {
		return 0, nil
	}
	for _, m := range migrations {
		if m.Version == target {
			return target, nil
		}
	}
	return 0, fmt.Errorf("no migration with version %d", target)
}
