// --- File: pkg/dispatch/interfaces.go ---
package dispatch

import (
	"context"
)

// Sender defines the contract for a component that delivers a single
// notification request to the push provider (e.g., Google's FCM).
type Sender interface {
	// Send invokes the provider exactly once and returns the provider's
	// response (for FCM, the message name). No retries are performed.
	Send(ctx context.Context, req *NotificationRequest) (string, error)
}
