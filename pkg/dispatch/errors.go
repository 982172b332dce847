package dispatch

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ConfigStage identifies where provider initialization failed.
type ConfigStage string

const (
	StageKeyDecode  ConfigStage = "key_decode"
	StageClientInit ConfigStage = "client_init"
)

// ConfigurationError means the provider client could not be initialized.
// It is fatal to the whole batch: no message is attempted.
type ConfigurationError struct {
	Stage ConfigStage
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider configuration failed (%s): %v", e.Stage, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MalformedPayloadError means a message body is not a JSON notification object.
type MalformedPayloadError struct {
	MessageID string
	Err       error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("invalid JSON in message %s: %v", e.MessageID, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// ValidationError means a decoded request breaks a content rule.
type ValidationError struct {
	MessageID string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.MessageID == "" {
		return e.Reason
	}
	return fmt.Sprintf("message %s: %s", e.MessageID, e.Reason)
}

// DeliveryError wraps a failure returned by the push provider.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("provider send failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// BatchError is the aggregate failure raised when one or more messages of a
// batch failed. The queue retries the entire batch when it sees this error.
type BatchError struct {
	Failed int
	Total  int
	Causes *multierror.Error
}

// NewBatchError collects the per-message errors of the failed outcomes.
func NewBatchError(total int, failures []Outcome) *BatchError {
	var causes *multierror.Error
	for _, f := range failures {
		causes = multierror.Append(causes, f.Err)
	}
	return &BatchError{
		Failed: len(failures),
		Total:  total,
		Causes: causes,
	}
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d messages failed", e.Failed, e.Total)
}

// Unwrap exposes the per-message causes to errors.Is and errors.As.
func (e *BatchError) Unwrap() error {
	return e.Causes.ErrorOrNil()
}
