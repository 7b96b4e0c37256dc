// Package migration applies the print shop schema with goose.
package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database"
)

//go:embed sql/*.sql
var embedded embed.FS

// Module provides the migrator to Fx.
var Module = fx.Provide(New)

// Migrator runs the embedded schema migrations against the writer pool.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

// Status is the state of one migration.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// New builds a migrator for the configured driver.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, conns.Writer.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		m.logger.Info("schema up to date")
		return nil
	}
	for _, r := range results {
		m.logger.Info("migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("took", r.Duration),
		)
	}
	return nil
}

// Down rolls back steps migrations (at least one), or every migration when
// all is set.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		results, err := m.provider.DownTo(ctx, 0)
		if err != nil {
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"), zap.Int("count", len(results)))
		return nil
	}

	steps = max(steps, 1)
	for i := 0; i < steps; i++ {
		r, err := m.provider.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			m.logger.Info("no migrations to roll back")
			return nil
		}
		if err != nil {
			return err
		}
		m.logger.Info("migration rolled back", zap.Int64("version", r.Source.Version))
	}
	return nil
}

// Status lists every embedded migration with whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func gooseDialect(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres", "pg":
		return goose.DialectPostgres, nil
	case "mysql":
		return goose.DialectMySQL, nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}
