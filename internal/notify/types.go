package notify

import (
	"context"
	"time"

	"notifyd/internal/storage"
)

// Event is the outbound push wire shape. One event type carries every
// notification class; Type is the notification kind.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ItemID    *int64    `json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventFrom maps a persisted notification onto the wire shape.
func EventFrom(n storage.Notification) Event {
	return Event{
		ID:        n.ID,
		Type:      n.Kind,
		Message:   n.Message,
		ItemID:    n.ItemID,
		CreatedAt: n.CreatedAt,
	}
}

// PushConn is one live push connection. Send must be safe for
// concurrent use; a failed send is the transport's problem (it owns
// the connection lifecycle and unregisters dead connections).
type PushConn interface {
	Send(ctx context.Context, ev Event) error
}

// EmailSender is the outbound email channel. Implementations render
// the per-kind subject and body templates themselves.
type EmailSender interface {
	SendItem(ctx context.Context, to, kind string, it storage.Item) error
}

// OwnerResolver resolves the user owning an item, for email targeting.
type OwnerResolver interface {
	GetOwner(ctx context.Context, itemID int64) (storage.User, error)
}
