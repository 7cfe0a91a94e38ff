package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/redirector/internal/app/model"
	apprepository "github.com/sifan077/redirector/internal/app/repository"
	"go.uber.org/zap"
)

const (
	hitFetchBatch   = 10
	hitFetchMaxWait = 5 * time.Second
)

// HitConsumer stores hit events pulled from NATS JetStream.
type HitConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.HitEventRepository
}

// NewHitConsumer creates a new hit event consumer.
func NewHitConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.HitEventRepository) *HitConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HitConsumer{js: js, logger: logger, repo: repo}
}

// Start ensures the stream and durable consumer exist and consumes until ctx is done.
func (c *HitConsumer) Start(ctx context.Context) error {
	if err := EnsureHitStream(c.js); err != nil {
		return err
	}

	if _, err := c.js.ConsumerInfo(model.HitStreamName, model.HitConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.HitStreamName, &nats.ConsumerConfig{
			Durable:   model.HitConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.HitStreamSubject, model.HitConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *HitConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() { _ = sub.Unsubscribe() }()
	for {
		if ctx.Err() != nil {
			c.logger.Info("hit consumer stopped")
			return
		}

		msgs, err := sub.Fetch(hitFetchBatch, nats.MaxWait(hitFetchMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Warn("hit consumer subscription closed", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := c.handle(ctx, msg.Data); err != nil {
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (c *HitConsumer) handle(ctx context.Context, data []byte) error {
	var event model.HitEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Error("failed to unmarshal hit event", zap.Error(err))
		return err
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		c.logger.Error("failed to store hit event",
			zap.String("id", event.ID),
			zap.String("domain", event.Domain),
			zap.Error(err))
		return err
	}

	c.logger.Debug("hit event stored",
		zap.String("id", event.ID),
		zap.String("domain", event.Domain),
		zap.String("decision", event.Decision),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}
