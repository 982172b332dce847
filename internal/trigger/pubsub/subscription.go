package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// SubscriptionSpec describes the subscription the consumer reads from.
// DLQTopicID is optional; without it no dead-letter policy is attached.
type SubscriptionSpec struct {
	ProjectID           string
	TopicID             string
	SubscriptionID      string
	DLQTopicID          string
	MaxDeliveryAttempts int32
	AckDeadline         time.Duration
	MinimumBackoff      time.Duration
}

// EnsureSubscription creates the subscription if it does not exist yet.
// An existing subscription is left untouched.
func EnsureSubscription(ctx context.Context, client *pubsub.Client, spec SubscriptionSpec, logger *slog.Logger) error {
	sub := &pubsubpb.Subscription{
		Name:               resourceName(spec.ProjectID, spec.SubscriptionID, subscriptions),
		Topic:              resourceName(spec.ProjectID, spec.TopicID, topics),
		AckDeadlineSeconds: int32(spec.AckDeadline / time.Second),
	}
	if sub.AckDeadlineSeconds == 0 {
		sub.AckDeadlineSeconds = 10
	}
	if spec.DLQTopicID != "" {
		sub.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     resourceName(spec.ProjectID, spec.DLQTopicID, topics),
			MaxDeliveryAttempts: spec.MaxDeliveryAttempts,
		}
	}
	if spec.MinimumBackoff > 0 {
		sub.RetryPolicy = &pubsubpb.RetryPolicy{
			MinimumBackoff: durationpb.New(spec.MinimumBackoff),
		}
	}

	logger.Debug("Ensuring subscription exists", "sub", sub.Name, "topic", sub.Topic)
	_, err := client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", sub.Name)
			return nil
		}
		logger.Error("Failed to create subscription", "sub", sub.Name, "err", err)
		return fmt.Errorf("could not create subscription %s: %w", sub.Name, err)
	}
	logger.Info("Subscription created", "sub", sub.Name)
	return nil
}

type resourceKind string

const (
	topics        resourceKind = "topics"
	subscriptions resourceKind = "subscriptions"
)

func resourceName(project, id string, kind resourceKind) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, id)
}
