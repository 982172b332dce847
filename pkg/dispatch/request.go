package dispatch

const (
	// FallbackTopic is used when a request names neither a device token nor a topic.
	FallbackTopic = "general"

	DefaultTitle = "New Notification"
	DefaultBody  = "You have a new notification"
)

// NotificationRequest is the payload of one queued message.
type NotificationRequest struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`

	// Token addresses a single device. It takes precedence over Topic.
	Token string `json:"token,omitempty"`
	Topic string `json:"topic,omitempty"`
}

// Validate checks that the request carries something to display.
func (r *NotificationRequest) Validate() error {
	if r.Title == "" && r.Body == "" {
		return &ValidationError{Reason: "message must contain title or body"}
	}
	return nil
}

// Target resolves the addressing mode. Exactly one of the returned values is non-empty.
func (r *NotificationRequest) Target() (token, topic string) {
	if r.Token != "" {
		return r.Token, ""
	}
	if r.Topic != "" {
		return "", r.Topic
	}
	return "", FallbackTopic
}
