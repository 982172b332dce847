package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

// BatchProcessor runs every message of a batch through decode -> validate -> send.
// Each message is processed in isolation: a failure (or panic) in one message
// becomes a failure outcome and never stops the rest of the batch.
type BatchProcessor struct {
	decode Decoder
	logger *slog.Logger
}

func NewBatchProcessor(decode Decoder, logger *slog.Logger) *BatchProcessor {
	return &BatchProcessor{
		decode: decode,
		logger: logger.With("component", "BatchProcessor"),
	}
}

// ProcessBatch processes messages sequentially, in input order.
func (p *BatchProcessor) ProcessBatch(
	ctx context.Context,
	sender dispatch.Sender,
	messages []messagepipeline.Message,
) (successes []dispatch.Outcome, failures []dispatch.Outcome) {
	for i := range messages {
		outcome := p.processOne(ctx, sender, &messages[i])
		if outcome.Status == dispatch.StatusSuccess {
			successes = append(successes, outcome)
		} else {
			failures = append(failures, outcome)
		}
	}

	p.logger.Info("Batch processing completed", "successful", len(successes), "failed", len(failures))
	return successes, failures
}

func (p *BatchProcessor) processOne(ctx context.Context, sender dispatch.Sender, msg *messagepipeline.Message) (outcome dispatch.Outcome) {
	procLogger := p.logger.With("msg_id", msg.ID)

	defer func() {
		if r := recover(); r != nil {
			err := &dispatch.DeliveryError{Err: fmt.Errorf("panic while processing message: %v", r)}
			procLogger.Error("Recovered from panic", "err", err)
			outcome = dispatch.Failed(msg.ID, err, msg.Payload)
		}
	}()

	req, err := p.decode(ctx, msg)
	if err != nil {
		procLogger.Error("Failed to decode message", "err", err, "body", string(msg.Payload))
		return dispatch.Failed(msg.ID, err, msg.Payload)
	}

	result, err := sender.Send(ctx, req)
	if err != nil {
		procLogger.Error("Failed to send notification", "err", err)
		return dispatch.Failed(msg.ID, err, msg.Payload)
	}

	procLogger.Info("Message processed successfully", "result", result)
	return dispatch.Succeeded(msg.ID, req, result)
}
