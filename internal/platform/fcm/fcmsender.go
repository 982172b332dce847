// --- File: internal/platform/fcm/fcmsender.go ---
// Package fcm delivers notification requests through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// ISO-8601, UTC, millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
// Note: *messaging.Client automatically satisfies this interface.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Sender struct {
	client  MessagingClient
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewSender wraps an initialized messaging client. A zero timeout leaves the
// provider call bounded only by the SDK's own HTTP timeout.
func NewSender(client MessagingClient, timeout time.Duration, logger *slog.Logger) *Sender {
	return &Sender{
		client:  client,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With("component", "FCMSender"),
	}
}

// Send builds the FCM envelope for req and performs exactly one provider call.
func (s *Sender) Send(ctx context.Context, req *dispatch.NotificationRequest) (string, error) {
	msg := BuildMessage(req, s.now())

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name, err := s.client.Send(ctx, msg)
	if err != nil {
		if messaging.IsInvalidArgument(err) {
			s.logger.Warn("FCM rejected message as InvalidArgument", "token_set", msg.Token != "", "topic", msg.Topic, "err", err)
		}
		return "", &dispatch.DeliveryError{Err: err}
	}

	s.logger.Debug("FCM message sent", "name", name, "topic", msg.Topic)
	return name, nil
}

// BuildMessage constructs the provider envelope. Missing title/body get the
// default strings, data is copied verbatim plus an injected "timestamp", and the
// message is addressed by token when present, otherwise by topic.
func BuildMessage(req *dispatch.NotificationRequest, now time.Time) *messaging.Message {
	content := contentFor(req)

	data := make(map[string]string, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	data["timestamp"] = now.UTC().Format(timestampLayout)

	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: content.Title,
			Body:  content.Body,
		},
		Data: data,
	}

	token, topic := req.Target()
	if token != "" {
		msg.Token = token
	} else {
		msg.Topic = topic
	}
	return msg
}

func contentFor(req *dispatch.NotificationRequest) notification.NotificationContent {
	content := notification.NotificationContent{
		Title: req.Title,
		Body:  req.Body,
	}
	if content.Title == "" {
		content.Title = dispatch.DefaultTitle
	}
	if content.Body == "" {
		content.Body = dispatch.DefaultBody
	}
	return content
}
