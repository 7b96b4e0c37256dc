package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
)

const (
	fetchBackoffBase = 250 * time.Millisecond
	fetchBackoffCap  = 10 * time.Second
)

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *kafkaClient {
	kc := cfg.Messaging.Kafka
	client := &kafkaClient{
		topic:  kc.Topic,
		logger: logger.With(zap.String("topic", kc.Topic)),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(kc.Brokers...),
			Topic:        kc.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Logger:       kafkaLogger{logger: logger},
			ErrorLogger:  kafkaLogger{logger: logger, errors: true},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        kc.Brokers,
			GroupID:        cfg.Messaging.ConsumerGroup,
			Topic:          kc.Topic,
			MinBytes:       kc.MinBytes,
			MaxBytes:       kc.MaxBytes,
			CommitInterval: kc.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  kc.ConnectTimeout,
				ClientID: kc.ClientID,
			},
		}),
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			client.logger.Info("closing kafka client")
			return errors.Join(client.writer.Close(), client.reader.Close())
		},
	})
	return client
}

// Publish writes one event keyed by order id so events of an order stay on
// one partition, in order.
func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	headers = InjectTrace(ctx, headers)
	msg := kafka.Message{Key: key, Value: value, Headers: make([]kafka.Header, 0, len(headers))}
	for name, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: name, Value: []byte(v)})
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", k.topic, err)
	}
	return nil
}

// Consume fetches until ctx ends. Fetch errors back off exponentially; a
// handler error leaves the offset uncommitted so the event is redelivered.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	backoff := newFetchBackoff()
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait, _ := backoff.Next()
			k.logger.Error("kafka fetch failed", zap.Error(err), zap.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		backoff = newFetchBackoff()

		m := fromKafka(msg)
		if err := handler(ExtractTrace(ctx, m.Headers), m); err != nil {
			k.logger.Error("message handler failed",
				zap.Error(err),
				zap.String("event_type", m.EventType()),
				zap.Int64("offset", msg.Offset),
			)
			continue
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func newFetchBackoff() retry.Backoff {
	return retry.WithCappedDuration(fetchBackoffCap, retry.NewExponential(fetchBackoffBase))
}

func fromKafka(msg kafka.Message) Message {
	m := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		m.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			m.Headers[h.Key] = string(h.Value)
		}
	}
	return m
}

type kafkaLogger struct {
	logger *zap.Logger
	errors bool
}

func (k kafkaLogger) Printf(msg string, args ...any) {
	if k.errors {
		k.logger.Sugar().Warnf(msg, args...)
		return
	}
	k.logger.Sugar().Debugf(msg, args...)
}
