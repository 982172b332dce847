// Package httpapi exposes the batch handler over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-notification-bridge/internal/handler"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

const maxEventBytes = 4 << 20

type BatchHandler interface {
	Handle(ctx context.Context, batch handler.Batch) (*handler.Response, error)
}

// Record is one queue message in an invoke event.
type Record struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

// InvokeEvent mirrors the queue event envelope: {"Records":[...]}.
type InvokeEvent struct {
	Records []Record `json:"Records"`
}

type InvokeAPI struct {
	Handler BatchHandler
	Logger  *slog.Logger
}

func NewInvokeAPI(h BatchHandler, logger *slog.Logger) *InvokeAPI {
	return &InvokeAPI{
		Handler: h,
		Logger:  logger.With("component", "InvokeAPI"),
	}
}

// Invoke runs one batch synchronously.
//
//	200 - every message succeeded, body is the handler.Response
//	400 - the event could not be decoded
//	500 - one or more messages failed; the caller should retry the whole batch
//	503 - the provider client could not be initialized
func (api *InvokeAPI) Invoke(w http.ResponseWriter, r *http.Request) {
	var event InvokeEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&event); err != nil {
		api.Logger.Warn("Invoke: event decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid event json")
		return
	}

	batch := handler.Batch{Messages: make([]messagepipeline.Message, len(event.Records))}
	for i, rec := range event.Records {
		id := rec.MessageID
		if id == "" {
			id = uuid.NewString()
		}
		batch.Messages[i] = messagepipeline.Message{
			MessageData: messagepipeline.MessageData{ID: id, Payload: []byte(rec.Body)},
		}
	}

	resp, err := api.Handler.Handle(r.Context(), batch)
	if err != nil {
		var cfgErr *dispatch.ConfigurationError
		var batchErr *dispatch.BatchError
		switch {
		case errors.As(err, &cfgErr):
			response.WriteJSONError(w, http.StatusServiceUnavailable, "notification provider unavailable")
		case errors.As(err, &batchErr):
			response.WriteJSONError(w, http.StatusInternalServerError, batchErr.Error())
		default:
			api.Logger.Error("Invoke: unexpected handler error", "err", err)
			response.WriteJSONError(w, http.StatusInternalServerError, "batch processing failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		api.Logger.Error("Invoke: failed to write response", "err", err)
	}
}
