package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/entity"
)

// Source loads the authoritative owner queue.
type Source interface {
	ListQueue(ctx context.Context) ([]entity.Order, error)
}

// Watcher keeps a Cache consistent with the store. Change notifications only
// trigger a full refetch, so a dropped or duplicated notification cannot leave
// the cache stale beyond the next poll.
type Watcher struct {
	cache    *Cache
	source   Source
	logger   *zap.Logger
	interval time.Duration
	notify   chan struct{}
}

// NewWatcher creates a watcher polling source every interval.
func NewWatcher(cache *Cache, source Source, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		cache:    cache,
		source:   source,
		logger:   logger,
		interval: interval,
		notify:   make(chan struct{}, 1),
	}
}

// Cache exposes the cache kept by the watcher.
func (w *Watcher) Cache() *Cache { return w.cache }

// Notify requests a refetch. It never blocks; notifications arriving while
// one is pending coalesce.
func (w *Watcher) Notify() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Reconcile refetches the queue and replaces the cache. On failure the
// previous snapshot is kept.
func (w *Watcher) Reconcile(ctx context.Context) error {
	orders, err := w.source.ListQueue(ctx)
	if err != nil {
		w.logger.Warn("queue refresh failed, keeping previous snapshot", zap.Error(err))
		return err
	}
	w.cache.Replace(orders)
	return nil
}

// Run reconciles on start, on every notification and on every poll tick
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	_ = w.Reconcile(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.notify:
			_ = w.Reconcile(ctx)
		case <-ticker.C:
			_ = w.Reconcile(ctx)
		}
	}
}
