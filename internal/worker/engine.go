package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/messaging"
)

// HandlerRegistration binds a topic, and optionally one event type on that
// topic, to a handler. An empty EventType receives every event on the topic
// that has no more specific handler.
type HandlerRegistration struct {
	Topic     string
	EventType string
	Handler   messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

type routeKey struct {
	topic     string
	eventType string
}

// Engine orchestrates background message consumption.
type Engine struct {
	client       messaging.Client
	logger       *zap.Logger
	enabled      bool
	concurrency  int
	defaultTopic string
	routes       map[routeKey]messaging.Handler
	cancel       context.CancelFunc
	wg           *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	routes := make(map[routeKey]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		routes[routeKey{topic: r.Topic, eventType: r.EventType}] = r.Handler
	}

	return &Engine{
		client:       p.Client,
		logger:       p.Logger,
		enabled:      p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		concurrency:  max(p.Config.Messaging.Workers.Concurrency, 1),
		defaultTopic: p.Config.Messaging.Kafka.Topic,
		routes:       routes,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(ctx context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.routes) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < e.concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", e.concurrency), zap.Int("routes", len(e.routes)))

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

// Dispatch routes a message to its handler. Messages with no handler are
// acknowledged and dropped. Handler panics are reported as errors so the
// message is redelivered.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) (err error) {
	topic := msg.Topic
	if topic == "" {
		topic = e.defaultTopic
	}
	eventType := msg.EventType()

	handler, ok := e.routes[routeKey{topic: topic, eventType: eventType}]
	if !ok {
		handler, ok = e.routes[routeKey{topic: topic}]
	}
	if !ok {
		e.logger.Warn("no handler for message", zap.String("topic", topic), zap.String("event_type", eventType))

		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			e.logger.Error("worker handler panicked", zap.String("topic", topic), zap.Any("panic", r))
		}
	}()

	return handler(ctx, msg)
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Int("worker", workerID),
			)

			return e.Dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
