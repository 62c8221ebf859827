package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is relative to the repository root, where the binaries run from.
const DefaultDir = "pkg/migrate/migrations"

// goose only ever targets Postgres here; SQLite gets ApplySQLiteSchema.
func prepare(db *sql.DB, dir string) error {
	switch {
	case db == nil:
		return fmt.Errorf("db is required")
	case dir == "":
		return fmt.Errorf("migrations dir is required")
	}
	return goose.SetDialect("postgres")
}

// Run executes one goose command (up, down, status, redo, ...).
func Run(ctx context.Context, db *sql.DB, dir, command string, args ...string) error {
	if err := prepare(db, dir); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || len(version) != len(versionLayout) {
		return fmt.Errorf("version %q is not a YYYYMMDDHHMMSS timestamp", version)
	}
	if err := prepare(db, dir); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current == target {
		return nil
	}

	step, move := "up-to", goose.UpToContext
	if current > target {
		step, move = "down-to", goose.DownToContext
	}
	if err := move(ctx, db, dir, target); err != nil {
		return fmt.Errorf("goose %s %d: %w", step, target, err)
	}
	return nil
}
