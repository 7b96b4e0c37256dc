package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/fx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/entity"
)

// Connections bundles the order store's writer and reader pools. Reads that
// must observe the caller's own writes go to Writer.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// Tables lists the models owned by this service, in creation order.
func Tables() []any {
	return []any{
		(*entity.Order)(nil),
		(*entity.ShopSettings)(nil),
		(*entity.RevenueArchive)(nil),
	}
}

// New opens the pools; they are pinged on start and closed on stop.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	conns, err := Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected",
				zap.String("driver", cfg.Database.Driver),
				zap.Bool("replica", conns.Reader != conns.Writer),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			return conns.Close()
		},
	})
	return conns, nil
}

// Open builds the pools without pinging them.
func Open(cfg config.Database, logger *zap.Logger) (*Connections, error) {
	writer, err := open(cfg, cfg.WriterDSN, logger.With(zap.String("pool", "writer")))
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	if cfg.ReaderDSN == "" || cfg.ReaderDSN == cfg.WriterDSN {
		return &Connections{Writer: writer, Reader: writer}, nil
	}

	reader, err := open(cfg, cfg.ReaderDSN, logger.With(zap.String("pool", "reader")))
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	return &Connections{Writer: writer, Reader: reader}, nil
}

// Ping checks both pools.
func (c *Connections) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := c.Reader.PingContext(ctx); err != nil {
			return fmt.Errorf("ping reader: %w", err)
		}
	}
	return nil
}

// Close releases both pools.
func (c *Connections) Close() error {
	err := c.Writer.Close()
	if c.Reader != c.Writer {
		err = errors.Join(err, c.Reader.Close())
	}
	return err
}

func open(cfg config.Database, dsn string, logger *zap.Logger) (*bun.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	var db *bun.DB
	switch cfg.Driver {
	case "postgres":
		db = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New())
	case "mysql":
		sqldb, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, err
		}
		db = bun.NewDB(sqldb, mysqldialect.New())
	case "sqlite":
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers; a single connection keeps order
		// transactions from failing with SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if cfg.Driver != "sqlite" {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.MaxConnLifetime > 0 {
			db.SetConnMaxLifetime(cfg.MaxConnLifetime)
		}
	}
	if cfg.SlowQuery > 0 {
		db.AddQueryHook(&SlowQueryHook{Threshold: cfg.SlowQuery, Logger: logger})
	}
	return db, nil
}
