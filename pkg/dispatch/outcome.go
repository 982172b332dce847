package dispatch

// OutcomeStatus tags a per-message result.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusError   OutcomeStatus = "error"
)

// Outcome is the result of processing one message of a batch.
// Success outcomes carry Request and Result; error outcomes carry Error, Err and Body.
type Outcome struct {
	MessageID string        `json:"messageId"`
	Status    OutcomeStatus `json:"status"`

	Result  string               `json:"result,omitempty"`
	Request *NotificationRequest `json:"notificationData,omitempty"`

	Error string `json:"error,omitempty"`
	Body  string `json:"body,omitempty"`
	Err   error  `json:"-"`
}

// Succeeded builds a success outcome.
func Succeeded(messageID string, req *NotificationRequest, result string) Outcome {
	return Outcome{
		MessageID: messageID,
		Status:    StatusSuccess,
		Result:    result,
		Request:   req,
	}
}

// Failed builds an error outcome. The raw body is kept so the failure can be
// inspected in logs without the original queue message.
func Failed(messageID string, err error, rawBody []byte) Outcome {
	return Outcome{
		MessageID: messageID,
		Status:    StatusError,
		Error:     err.Error(),
		Body:      string(rawBody),
		Err:       err,
	}
}
