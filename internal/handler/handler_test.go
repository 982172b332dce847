package handler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-notification-bridge/internal/handler"
	"github.com/tinywideclouds/go-notification-bridge/internal/pipeline"
	"github.com/tinywideclouds/go-notification-bridge/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

type mockMessagingClient struct {
	mock.Mock
}

func (m *mockMessagingClient) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type fakeLoader struct {
	client fcm.MessagingClient
	err    error
	calls  int
}

func (f *fakeLoader) EnsureInitialized(context.Context) (fcm.MessagingClient, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func newMessages(payloads ...string) []messagepipeline.Message {
	msgs := make([]messagepipeline.Message, len(payloads))
	for i, p := range payloads {
		msgs[i] = messagepipeline.Message{
			MessageData: messagepipeline.MessageData{ID: string(rune('1' + i)), Payload: []byte(p)},
		}
	}
	return msgs
}

func setup(loader handler.ClientLoader) *handler.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := func(c fcm.MessagingClient) dispatch.Sender {
		return fcm.NewSender(c, 0, logger)
	}
	processor := pipeline.NewBatchProcessor(pipeline.NotificationRequestDecoder, logger)
	return handler.New(loader, factory, processor, logger)
}

func TestHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("Single valid message", func(t *testing.T) {
		client := new(mockMessagingClient)
		client.On("Send", mock.Anything, mock.MatchedBy(func(m *messaging.Message) bool {
			return m.Token == "abc" && m.Notification.Title == "Hi" && m.Notification.Body == "There"
		})).Return("projects/demo/messages/1", nil).Once()
		h := setup(&fakeLoader{client: client})

		resp, err := h.Handle(ctx, handler.Batch{Messages: newMessages(`{"title":"Hi","body":"There","token":"abc"}`)})

		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 1, resp.Body.ProcessedCount)
		assert.Equal(t, "Messages processed successfully", resp.Body.Message)
		require.Len(t, resp.Body.Results, 1)
		assert.Equal(t, "projects/demo/messages/1", resp.Body.Results[0].Result)
		assert.NotEmpty(t, resp.Body.Timestamp)
		client.AssertExpectations(t)
	})

	t.Run("Partial failure fails the whole batch", func(t *testing.T) {
		client := new(mockMessagingClient)
		client.On("Send", mock.Anything, mock.Anything).Return("ok", nil).Once()
		h := setup(&fakeLoader{client: client})

		resp, err := h.Handle(ctx, handler.Batch{Messages: newMessages(`{"title":"A"}`, "not-json")})

		assert.Nil(t, resp)
		require.Error(t, err)
		assert.EqualError(t, err, "1 of 2 messages failed")

		var batchErr *dispatch.BatchError
		require.ErrorAs(t, err, &batchErr)
		assert.Equal(t, 1, batchErr.Failed)
		assert.Equal(t, 2, batchErr.Total)

		var malformed *dispatch.MalformedPayloadError
		assert.ErrorAs(t, err, &malformed)
		client.AssertNumberOfCalls(t, "Send", 1)
	})

	t.Run("Empty batch", func(t *testing.T) {
		client := new(mockMessagingClient)
		h := setup(&fakeLoader{client: client})

		resp, err := h.Handle(ctx, handler.Batch{})

		require.NoError(t, err)
		assert.Equal(t, 0, resp.Body.ProcessedCount)
		assert.NotNil(t, resp.Body.Results)
		client.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("No addressing falls back to general topic", func(t *testing.T) {
		client := new(mockMessagingClient)
		client.On("Send", mock.Anything, mock.MatchedBy(func(m *messaging.Message) bool {
			return m.Topic == dispatch.FallbackTopic && m.Token == ""
		})).Return("ok", nil).Once()
		h := setup(&fakeLoader{client: client})

		_, err := h.Handle(ctx, handler.Batch{Messages: newMessages(`{"body":"broadcast"}`)})

		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("Loader failure means no message is attempted", func(t *testing.T) {
		client := new(mockMessagingClient)
		cfgErr := &dispatch.ConfigurationError{Stage: dispatch.StageKeyDecode, Err: io.ErrUnexpectedEOF}
		loader := &fakeLoader{client: client, err: cfgErr}
		h := setup(loader)

		resp, err := h.Handle(ctx, handler.Batch{Messages: newMessages(`{"title":"A"}`, `{"title":"B"}`)})

		assert.Nil(t, resp)
		var target *dispatch.ConfigurationError
		require.ErrorAs(t, err, &target)
		assert.Equal(t, dispatch.StageKeyDecode, target.Stage)
		assert.Equal(t, 1, loader.calls)
		client.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}
