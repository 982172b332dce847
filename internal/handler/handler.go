// Package handler is the batch entry point shared by every trigger.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-notification-bridge/internal/pipeline"
	"github.com/tinywideclouds/go-notification-bridge/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

const successMessage = "Messages processed successfully"

// ClientLoader yields the provider client, initializing it on first use.
type ClientLoader interface {
	EnsureInitialized(ctx context.Context) (fcm.MessagingClient, error)
}

// SenderFactory wraps an initialized provider client into a Sender.
// Decorators (metrics, tracing) are applied here.
type SenderFactory func(client fcm.MessagingClient) dispatch.Sender

// Batch is one trigger invocation's worth of raw queue messages.
type Batch struct {
	Messages []messagepipeline.Message
}

type ResponseBody struct {
	Message        string             `json:"message"`
	ProcessedCount int                `json:"processedCount"`
	Results        []dispatch.Outcome `json:"results"`
	Timestamp      string             `json:"timestamp"`
}

type Response struct {
	StatusCode int          `json:"statusCode"`
	Body       ResponseBody `json:"body"`
}

type Handler struct {
	loader    ClientLoader
	newSender SenderFactory
	processor *pipeline.BatchProcessor
	now       func() time.Time
	logger    *slog.Logger
}

func New(loader ClientLoader, newSender SenderFactory, processor *pipeline.BatchProcessor, logger *slog.Logger) *Handler {
	return &Handler{
		loader:    loader,
		newSender: newSender,
		processor: processor,
		now:       time.Now,
		logger:    logger.With("component", "BatchHandler"),
	}
}

// Handle processes one batch.
//
// A *dispatch.ConfigurationError is returned before any message is touched when
// the provider client cannot be initialized. If any message fails, a
// *dispatch.BatchError is returned and the caller must treat the whole batch as
// failed so that the queue redelivers it.
func (h *Handler) Handle(ctx context.Context, batch Batch) (*Response, error) {
	h.logger.Info("Processing batch", "count", len(batch.Messages))

	client, err := h.loader.EnsureInitialized(ctx)
	if err != nil {
		h.logger.Error("Provider client unavailable, batch not processed", "err", err)
		return nil, err
	}

	successes, failures := h.processor.ProcessBatch(ctx, h.newSender(client), batch.Messages)

	if len(failures) > 0 {
		batchErr := dispatch.NewBatchError(len(batch.Messages), failures)
		for _, f := range failures {
			h.logger.Error("Message failed", "msg_id", f.MessageID, "err", f.Error)
		}
		h.logger.Error("Batch failed", "err", batchErr)
		return nil, batchErr
	}

	results := successes
	if results == nil {
		results = []dispatch.Outcome{}
	}

	return &Response{
		StatusCode: 200,
		Body: ResponseBody{
			Message:        successMessage,
			ProcessedCount: len(successes),
			Results:        results,
			Timestamp:      h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}, nil
}
