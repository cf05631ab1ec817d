package notification

import (
	"context"

	"github.com/google/uuid"
)

// Message is one dispatch request. The Data payload travels as JSON and is
// meant for the receiving UI, not for this service.
type Message struct {
	Type  string         `json:"type"`
	Title string         `json:"title"`
	Body  string         `json:"message"`
	Data  map[string]any `json:"data,omitempty"`
}

// Dispatcher hands messages to the notification store. Delivery and
// read-state tracking happen downstream; callers only request dispatch.
type Dispatcher interface {
	// NotifyUser targets a single user profile.
	NotifyUser(ctx context.Context, userID uuid.UUID, m Message) error

	// NotifyAdmins fans the message out to every administrator.
	NotifyAdmins(ctx context.Context, m Message) error
}
