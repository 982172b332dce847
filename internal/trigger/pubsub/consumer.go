// Package pubsub feeds batches of Pub/Sub messages into the batch handler.
//
// Messages are grouped until MaxBatchSize is reached or MaxBatchWait elapses.
// A batch is acknowledged as a unit: every message is Acked when the handler
// succeeds and every message is Nacked when it fails, so the subscription's
// retry and dead-letter policy applies to the whole batch.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-notification-bridge/internal/handler"
)

const (
	DefaultMaxBatchSize = 10
	DefaultMaxBatchWait = 2 * time.Second

	stopTimeout = 30 * time.Second
)

// BatchHandler is satisfied by *handler.Handler.
type BatchHandler interface {
	Handle(ctx context.Context, batch handler.Batch) (*handler.Response, error)
}

type Config struct {
	SubscriptionID string
	MaxBatchSize   int
	MaxBatchWait   time.Duration
}

type Consumer struct {
	source  *messagepipeline.GooglePubsubConsumer
	service *messagepipeline.BatchingService[messagepipeline.Message]
	handler BatchHandler
	logger  *slog.Logger
}

func NewConsumer(client *pubsub.Client, cfg Config, h BatchHandler, logger *slog.Logger) (*Consumer, error) {
	if cfg.SubscriptionID == "" {
		return nil, errors.New("subscription id is required")
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = DefaultMaxBatchWait
	}

	// Outstanding messages are capped at one batch: the next batch is not
	// leased until the current one has been acked or nacked.
	consumerCfg := messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	consumerCfg.MaxOutstandingMessages = cfg.MaxBatchSize
	consumerCfg.NumGoroutines = 1

	source, err := messagepipeline.NewGooglePubsubConsumer(consumerCfg, client, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub consumer: %w", err)
	}

	c := &Consumer{
		source:  source,
		handler: h,
		logger:  logger.With("component", "PubsubBatchTrigger", "subscription", cfg.SubscriptionID),
	}

	c.service, err = messagepipeline.NewBatchingService[messagepipeline.Message](
		messagepipeline.BatchingServiceConfig{
			NumWorkers:    1,
			BatchSize:     cfg.MaxBatchSize,
			FlushInterval: cfg.MaxBatchWait,
		},
		source,
		passThrough,
		c.processBatch,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batching service: %w", err)
	}
	return c, nil
}

// Run consumes until ctx is cancelled or the subscription stream ends.
// Messages already collected into a batch are handled before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start batching service: %w", err)
	}
	c.logger.Info("Pub/Sub batch trigger started")

	var runErr error
	select {
	case <-ctx.Done():
	case <-c.source.Done():
		if ctx.Err() == nil {
			runErr = errors.New("pubsub receive stopped unexpectedly")
		}
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := c.service.Stop(stopCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop batching service: %w", err)
	}
	c.logger.Info("Pub/Sub batch trigger stopped")
	return runErr
}

// processBatch runs one batch through the handler and settles every message
// with the same verdict.
func (c *Consumer) processBatch(ctx context.Context, items []messagepipeline.ProcessableItem[messagepipeline.Message]) error {
	batch := handler.Batch{Messages: make([]messagepipeline.Message, len(items))}
	for i, item := range items {
		batch.Messages[i] = item.Original
	}

	// An in-flight batch is never cut short by shutdown.
	if _, err := c.handler.Handle(context.WithoutCancel(ctx), batch); err != nil {
		c.logger.Warn("Batch failed, releasing all messages for redelivery", "count", len(items), "err", err)
		for _, item := range items {
			item.Original.Nack()
		}
		return err
	}

	for _, item := range items {
		item.Original.Ack()
	}
	c.logger.Debug("Batch acknowledged", "count", len(items))
	return nil
}

// passThrough hands raw messages to the batch unchanged; decoding happens per
// message inside the handler so a bad payload fails the batch instead of being
// settled on its own.
func passThrough(_ context.Context, msg *messagepipeline.Message) (*messagepipeline.Message, bool, error) {
	m := *msg
	return &m, false, nil
}
