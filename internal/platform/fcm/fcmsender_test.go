// --- File: internal/platform/fcm/fcmsender_test.go ---
package fcm_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-bridge/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

// MockClient satisfies the MessagingClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)

	t.Run("Token addressing with content", func(t *testing.T) {
		req := &dispatch.NotificationRequest{Title: "Hi", Body: "There", Token: "abc", Topic: "ignored"}

		msg := fcm.BuildMessage(req, now)

		assert.Equal(t, "abc", msg.Token)
		assert.Empty(t, msg.Topic)
		assert.Equal(t, "Hi", msg.Notification.Title)
		assert.Equal(t, "There", msg.Notification.Body)
	})

	t.Run("Defaults and fallback topic", func(t *testing.T) {
		msg := fcm.BuildMessage(&dispatch.NotificationRequest{Title: "A"}, now)

		assert.Empty(t, msg.Token)
		assert.Equal(t, "general", msg.Topic)
		assert.Equal(t, "A", msg.Notification.Title)
		assert.Equal(t, "You have a new notification", msg.Notification.Body)

		msg = fcm.BuildMessage(&dispatch.NotificationRequest{Body: "B", Topic: "drivers"}, now)
		assert.Equal(t, "drivers", msg.Topic)
		assert.Equal(t, "New Notification", msg.Notification.Title)
	})

	t.Run("Data passed through with timestamp", func(t *testing.T) {
		req := &dispatch.NotificationRequest{
			Title: "A",
			Data:  map[string]string{"orderId": "42", "timestamp": "stale"},
		}

		msg := fcm.BuildMessage(req, now)

		assert.Equal(t, "42", msg.Data["orderId"])
		assert.Equal(t, "2024-03-01T12:30:45.123Z", msg.Data["timestamp"])
		assert.Equal(t, "stale", req.Data["timestamp"], "request data must not be mutated")
	})
}

func TestFCMSend_Lifecycle(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()

	t.Run("Happy Path", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, 0, logger)

		mockClient.On("Send", ctx, mock.MatchedBy(func(m *messaging.Message) bool {
			return m.Token == "abc" && m.Notification.Title == "Hi"
		})).Return("projects/p/messages/1", nil).Once()

		name, err := sender.Send(ctx, &dispatch.NotificationRequest{Title: "Hi", Body: "There", Token: "abc"})

		require.NoError(t, err)
		assert.Equal(t, "projects/p/messages/1", name)
		mockClient.AssertExpectations(t)
	})

	t.Run("Provider Failure is a DeliveryError", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, 0, logger)
		providerErr := errors.New("network down")

		mockClient.On("Send", ctx, mock.Anything).Return("", providerErr).Once()

		_, err := sender.Send(ctx, &dispatch.NotificationRequest{Title: "Hi"})

		var deliveryErr *dispatch.DeliveryError
		require.ErrorAs(t, err, &deliveryErr)
		assert.ErrorIs(t, err, providerErr)
		mockClient.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("Timeout bounds the provider call", func(t *testing.T) {
		mockClient := new(MockClient)
		sender := fcm.NewSender(mockClient, time.Second, logger)

		mockClient.On("Send", mock.MatchedBy(func(c context.Context) bool {
			_, ok := c.Deadline()
			return ok
		}), mock.Anything).Return("ok", nil).Once()

		_, err := sender.Send(ctx, &dispatch.NotificationRequest{Title: "Hi"})

		require.NoError(t, err)
		mockClient.AssertExpectations(t)
	})
}
