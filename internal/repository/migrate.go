package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

// GooseDialect maps a database/sql driver name to the goose dialect.
func GooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "postgres", nil
	case "sqlite":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func prepareGoose(driver string, logger *zap.Logger) error {
	dialect, err := GooseDialect(driver)
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{sugar: logger.Sugar()})
	return goose.SetDialect(dialect)
}

// Migrate applies all pending embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) error {
	if err := prepareGoose(driver, logger); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// RunMigrations runs an arbitrary goose command (up, down, status, ...)
// against the embedded migrations.
func RunMigrations(ctx context.Context, db *sql.DB, driver, command string, logger *zap.Logger, args ...string) error {
	if err := prepareGoose(driver, logger); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, db, migrationsDir, args...)
}
