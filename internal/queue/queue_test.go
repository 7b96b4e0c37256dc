package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
)

type fakeSource struct {
	mu     sync.Mutex
	orders []entity.Order
	err    error
	calls  int
}

func (f *fakeSource) ListQueue(context.Context) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]entity.Order(nil), f.orders...), nil
}

func (f *fakeSource) set(orders []entity.Order, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders, f.err = orders, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func order(id string, status lifecycle.Status, offset time.Duration) entity.Order {
	return entity.Order{ID: id, Status: status, CreatedAt: t0.Add(offset)}
}

func TestCache_ReplaceIsKeyedByID(t *testing.T) {
	c := NewCache()
	batch := []entity.Order{
		order("a", lifecycle.StatusQueued, 0),
		order("b", lifecycle.StatusReady, time.Minute),
		order("p", lifecycle.StatusPendingPayment, 2*time.Minute),
	}
	c.Replace(batch)
	c.Replace(batch)
	c.Upsert(order("a", lifecycle.StatusPrinting, 0))

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, "a", snap[1].ID)
	assert.Equal(t, lifecycle.StatusPrinting, snap[1].Status)

	counts := c.Counts()
	assert.Equal(t, 1, counts[lifecycle.StatusPrinting])
	assert.Equal(t, 1, counts[lifecycle.StatusReady])
	assert.Equal(t, 0, counts[lifecycle.StatusQueued])

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_LoadedOnlyAfterReplace(t *testing.T) {
	c := NewCache()
	c.Upsert(order("a", lifecycle.StatusQueued, 0))
	assert.False(t, c.Loaded())
	assert.NotZero(t, c.Version())

	c.Replace(nil)
	assert.True(t, c.Loaded())
	assert.Zero(t, c.Len())
}

func TestWatcher_ReconcileKeepsSnapshotOnFailure(t *testing.T) {
	src := &fakeSource{orders: []entity.Order{order("a", lifecycle.StatusQueued, 0)}}
	w := NewWatcher(NewCache(), src, time.Hour, zaptest.NewLogger(t))

	require.NoError(t, w.Reconcile(context.Background()))
	require.Equal(t, 1, w.Cache().Len())

	src.set(nil, errors.New("db down"))
	assert.Error(t, w.Reconcile(context.Background()))
	assert.Equal(t, 1, w.Cache().Len())
}

func TestWatcher_NotifyCoalesces(t *testing.T) {
	w := NewWatcher(NewCache(), &fakeSource{}, time.Hour, zaptest.NewLogger(t))
	for i := 0; i < 100; i++ {
		w.Notify()
	}
	assert.Len(t, w.notify, 1)
}

func TestWatcher_RunRefreshesOnNotify(t *testing.T) {
	src := &fakeSource{}
	w := NewWatcher(NewCache(), src, time.Hour, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	require.Eventually(t, func() bool { return src.callCount() >= 1 }, time.Second, 5*time.Millisecond)

	src.set([]entity.Order{order("x", lifecycle.StatusReady, 0)}, nil)
	w.Notify()
	require.Eventually(t, func() bool {
		_, ok := w.Cache().Get("x")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
