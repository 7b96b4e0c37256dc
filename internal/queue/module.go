package queue

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
	repo "github.com/solveprint/printshop/internal/repository/order"
)

// Params defines dependencies for constructing the watcher.
type Params struct {
	fx.In

	Repository *repo.Repository
	Config     config.Config
	Logger     *zap.Logger
}

// Module provides the queue cache and watcher and runs the watcher with the app.
var Module = fx.Options(
	fx.Provide(NewCache),
	fx.Provide(func(p Params, cache *Cache) *Watcher {
		return NewWatcher(cache, p.Repository, p.Config.Queue.PollInterval, p.Logger)
	}),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, w *Watcher, logger *zap.Logger) error {
	meter := otel.Meter("github.com/solveprint/printshop/queue")
	_, err := meter.Int64ObservableGauge("printshop.queue.depth",
		metric.WithDescription("Orders currently visible in the owner queue"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(w.Cache().Len()))
			return nil
		}),
	)
	if err != nil {
		logger.Warn("queue depth gauge unavailable", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				w.Run(runCtx)
			}()
			logger.Info("queue watcher started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			logger.Info("queue watcher stopped")
			return nil
		},
	})
	return nil
}
