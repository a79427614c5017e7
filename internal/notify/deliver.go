package notify

import (
	"context"

	"notifyd/internal/eventbus"
	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

// deliverer fans one created notification out to the push registry and
// the email channel. The two paths are independent: a push with zero
// recipients is fine (the user is offline) and an email failure is
// logged and swallowed, never invalidating the persisted record.
type deliverer struct {
	registry *Registry
	mail     EmailSender // nil when the email channel is disabled
	owners   OwnerResolver
	bus      eventbus.Bus
	log      logx.Logger
}

func (d *deliverer) deliver(ctx context.Context, c Created, overdueEmail bool) {
	n := c.Notification
	ev := EventFrom(n)

	pushed := d.registry.Broadcast(ctx, n.UserID, ev)
	if pushed > 0 {
		d.log.Debug("notification pushed", logx.String("id", n.ID), logx.String("kind", n.Kind), logx.Int64("user_id", n.UserID), logx.Int("conns", pushed))
	}

	if !d.wantsEmail(n.Kind, overdueEmail) {
		return
	}

	owner, err := d.owners.GetOwner(ctx, c.Item.ID)
	if err != nil {
		d.emailFailed(n, err)
		return
	}
	if err := d.mail.SendItem(ctx, owner.Email, n.Kind, c.Item); err != nil {
		d.emailFailed(n, err)
		return
	}
	d.log.Debug("notification emailed", logx.String("id", n.ID), logx.String("kind", n.Kind), logx.String("to", owner.Email))
}

// wantsEmail applies the per-kind email policy: reminder and due_soon
// always, overdue only when the policy knob enables it.
func (d *deliverer) wantsEmail(kind string, overdueEmail bool) bool {
	if d.mail == nil {
		return false
	}
	switch kind {
	case storage.KindReminder, storage.KindDueSoon:
		return true
	case storage.KindOverdue:
		return overdueEmail
	default:
		return false
	}
}

func (d *deliverer) emailFailed(n storage.Notification, err error) {
	d.log.Warn("email delivery failed", logx.String("id", n.ID), logx.String("kind", n.Kind), logx.Int64("user_id", n.UserID), logx.Err(err))
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{
			Type: eventbus.TypeEmailFailed,
			Data: map[string]any{"id": n.ID, "kind": n.Kind, "user_id": n.UserID},
		})
	}
}
