package types

// Webhook directions sent with task activity.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// TaskActivityEvent is the body Habitica posts to a taskActivity webhook.
// Deliveries without a type are rejected by the webhook receiver.
type TaskActivityEvent struct {
	Type        string `json:"type" validate:"required"`
	Direction   string `json:"direction,omitempty"`
	Task        *Task  `json:"task,omitempty"`
	WebhookType string `json:"webhookType,omitempty"`
}
