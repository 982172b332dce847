// Package tracing decorates a dispatch.Sender with OpenTelemetry spans.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

const instrumentationName = "github.com/tinywideclouds/go-notification-bridge/provider"

type Sender struct {
	next   dispatch.Sender
	tracer trace.Tracer
	name   string
}

// NewSender wraps next. A nil provider uses the global tracer provider, which
// records nothing until the host installs one with otel.SetTracerProvider.
func NewSender(next dispatch.Sender, name string, tp trace.TracerProvider) *Sender {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Sender{
		next:   next,
		tracer: tp.Tracer(instrumentationName),
		name:   name,
	}
}

func (s *Sender) Send(ctx context.Context, req *dispatch.NotificationRequest) (string, error) {
	token, topic := req.Target()
	ctx, span := s.tracer.Start(ctx, "Sender.Send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider.name", s.name),
			attribute.Bool("notification.has_token", token != ""),
			attribute.String("notification.topic", topic),
			attribute.Int("notification.data_keys", len(req.Data)),
		))
	defer span.End()

	result, err := s.next.Send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(attribute.String("provider.message_name", result))
	return result, nil
}
