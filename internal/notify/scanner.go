package notify

import (
	"context"
	"errors"
	"time"

	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

// Windows are the three scan windows anchored at the tick time T:
//
//	reminder  [T-ReminderHalf, T+ReminderHalf]
//	due_soon  [T+DueSoonLead-DueSoonWidth, T+DueSoonLead]
//	overdue   [T-OverdueGrace, T]
//
// Every window must be at least as wide as the tick interval so that
// scheduling jitter or a skipped tick can only delay a trigger, never
// drop it.
type Windows struct {
	ReminderHalf time.Duration
	DueSoonLead  time.Duration
	DueSoonWidth time.Duration
	OverdueGrace time.Duration
}

// DefaultWindows matches the 1-minute tick defaults: reminder
// [T-5m, T+5m], due-soon [T+55m, T+60m], overdue [T-5m, T].
func DefaultWindows() Windows {
	return Windows{
		ReminderHalf: 5 * time.Minute,
		DueSoonLead:  time.Hour,
		DueSoonWidth: 5 * time.Minute,
		OverdueGrace: 5 * time.Minute,
	}
}

func (w Windows) normalized() Windows {
	def := DefaultWindows()
	if w.ReminderHalf <= 0 {
		w.ReminderHalf = def.ReminderHalf
	}
	if w.DueSoonLead <= 0 {
		w.DueSoonLead = def.DueSoonLead
	}
	if w.DueSoonWidth <= 0 || w.DueSoonWidth > w.DueSoonLead {
		w.DueSoonWidth = def.DueSoonWidth
	}
	if w.OverdueGrace <= 0 {
		w.OverdueGrace = def.OverdueGrace
	}
	return w
}

// Message returns the notification text for a kind and item title.
func Message(kind, title string) string {
	switch kind {
	case storage.KindReminder:
		return "Reminder: " + title
	case storage.KindDueSoon:
		return "Due soon: " + title
	case storage.KindOverdue:
		return "Overdue: " + title
	default:
		return title
	}
}

// Created is one notification produced by a scan, paired with its
// source item so delivery does not re-query the store.
type Created struct {
	Notification storage.Notification
	Item         storage.Item
}

// ScanReport summarizes one scan tick.
type ScanReport struct {
	Created []Created

	Scanned      int // items matched by any window
	Deduped      int // matches suppressed by an existing notification
	WindowErrors int // windows whose store query failed this tick
	ItemErrors   int // items skipped by a write failure (retried next tick)
}

// scanner finds triggered items and writes their notification records.
// Delivery is the caller's job.
type scanner struct {
	items storage.ItemStore
	notes storage.NotificationStore
	log   logx.Logger
}

// scan runs the three windows sequentially. A window's query failure
// aborts only that window for this tick; item-level write failures skip
// only that item. The returned report is always usable.
func (s *scanner) scan(ctx context.Context, now time.Time, w Windows) ScanReport {
	w = w.normalized()
	var rep ScanReport

	s.scanReminders(ctx, now, w, &rep)
	s.scanDueSoon(ctx, now, w, &rep)
	s.scanOverdue(ctx, now, w, &rep)

	return rep
}

func (s *scanner) scanReminders(ctx context.Context, now time.Time, w Windows, rep *ScanReport) {
	items, err := s.items.IncompleteByReminderWindow(ctx, now.Add(-w.ReminderHalf), now.Add(w.ReminderHalf))
	if err != nil {
		rep.WindowErrors++
		s.log.Error("reminder window query failed", logx.Err(err))
		return
	}
	rep.Scanned += len(items)

	for _, it := range items {
		n, err := s.notes.InsertNotification(ctx, storage.Notification{
			UserID:  it.UserID,
			ItemID:  &it.ID,
			Kind:    storage.KindReminder,
			Message: Message(storage.KindReminder, it.Title),
		})
		if err != nil {
			// Reminder insert failed: leave remind_at in place so the
			// item re-matches on the next tick.
			rep.ItemErrors++
			s.log.Error("reminder insert failed", logx.Int64("item_id", it.ID), logx.Err(err))
			continue
		}
		// Clearing is the reminder class's dedup: the window spans two
		// ticks, so an uncleared reminder would fire again.
		if err := s.items.ClearReminder(ctx, it.ID); err != nil {
			s.log.Error("clearing reminder failed, item may re-fire", logx.Int64("item_id", it.ID), logx.Err(err))
		}
		rep.Created = append(rep.Created, Created{Notification: n, Item: it})
	}
}

func (s *scanner) scanDueSoon(ctx context.Context, now time.Time, w Windows, rep *ScanReport) {
	start := now.Add(w.DueSoonLead - w.DueSoonWidth)
	end := now.Add(w.DueSoonLead)
	s.scanDueClass(ctx, storage.KindDueSoon, start, end, rep)
}

func (s *scanner) scanOverdue(ctx context.Context, now time.Time, w Windows, rep *ScanReport) {
	s.scanDueClass(ctx, storage.KindOverdue, now.Add(-w.OverdueGrace), now, rep)
}

// scanDueClass handles the two lookup-deduplicated classes. The exists
// check is the fast path; the unique index on (item_id, kind) backstops
// it, so a duplicate insert reports storage.ErrDuplicate and is skipped.
func (s *scanner) scanDueClass(ctx context.Context, kind string, start, end time.Time, rep *ScanReport) {
	items, err := s.items.IncompleteByDueWindow(ctx, start, end)
	if err != nil {
		rep.WindowErrors++
		s.log.Error("due window query failed", logx.String("kind", kind), logx.Err(err))
		return
	}
	rep.Scanned += len(items)

	for _, it := range items {
		exists, err := s.notes.NotificationExists(ctx, it.ID, kind)
		if err != nil {
			rep.ItemErrors++
			s.log.Error("dedup lookup failed", logx.String("kind", kind), logx.Int64("item_id", it.ID), logx.Err(err))
			continue
		}
		if exists {
			rep.Deduped++
			continue
		}

		n, err := s.notes.InsertNotification(ctx, storage.Notification{
			UserID:  it.UserID,
			ItemID:  &it.ID,
			Kind:    kind,
			Message: Message(kind, it.Title),
		})
		if errors.Is(err, storage.ErrDuplicate) {
			rep.Deduped++
			continue
		}
		if err != nil {
			rep.ItemErrors++
			s.log.Error("notification insert failed", logx.String("kind", kind), logx.Int64("item_id", it.ID), logx.Err(err))
			continue
		}
		rep.Created = append(rep.Created, Created{Notification: n, Item: it})
	}
}
