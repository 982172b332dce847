// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

// Decoder turns one raw queue message into a validated request.
type Decoder func(ctx context.Context, msg *messagepipeline.Message) (*dispatch.NotificationRequest, error)

var errNotObject = errors.New("payload is not a JSON object")

// NotificationRequestDecoder unmarshals and validates a raw message payload.
//
// Field names are matched exactly; "TITLE" or "Token" are ignored like any other
// unknown key. A payload that is not a JSON object (null included), or whose
// known fields have the wrong type, yields *dispatch.MalformedPayloadError. One
// lacking both title and body yields *dispatch.ValidationError.
func NotificationRequestDecoder(_ context.Context, msg *messagepipeline.Message) (*dispatch.NotificationRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg.Payload, &fields); err != nil {
		return nil, &dispatch.MalformedPayloadError{MessageID: msg.ID, Err: err}
	}
	if fields == nil {
		return nil, &dispatch.MalformedPayloadError{MessageID: msg.ID, Err: errNotObject}
	}

	var req dispatch.NotificationRequest
	targets := map[string]any{
		"title": &req.Title,
		"body":  &req.Body,
		"data":  &req.Data,
		"token": &req.Token,
		"topic": &req.Topic,
	}
	for key, dst := range targets {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, &dispatch.MalformedPayloadError{MessageID: msg.ID, Err: err}
		}
	}

	if err := req.Validate(); err != nil {
		return nil, &dispatch.ValidationError{MessageID: msg.ID, Reason: err.Error()}
	}
	return &req, nil
}
