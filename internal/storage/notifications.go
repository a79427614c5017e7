package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotificationExists reports whether a notification of the given kind
// already exists for the item.
func (s *sqliteStore) NotificationExists(ctx context.Context, itemID int64, kind string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notifications WHERE item_id = ? AND kind = ?`,
		itemID, kind,
	)
	if err != nil {
		return false, fmt.Errorf("checking notification (item %d, %s): %w", itemID, kind, err)
	}
	return n > 0, nil
}

// InsertNotification persists one notification record. A violation of
// the per-(item, kind) uniqueness index is reported as ErrDuplicate so
// callers can treat it as already-fired.
func (s *sqliteStore) InsertNotification(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, item_id, kind, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.ItemID, n.Kind, n.Message, n.Read, n.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Notification{}, fmt.Errorf("notification (item %v, %s): %w", n.ItemID, n.Kind, ErrDuplicate)
		}
		return Notification{}, fmt.Errorf("inserting notification: %w", err)
	}
	return n, nil
}

// listLimit caps the notification list so long-lived accounts do not
// pull their whole history on every request.
const listLimit = 50

// NotificationsByUser returns the user's most recent notifications,
// newest first, capped at listLimit rows.
func (s *sqliteStore) NotificationsByUser(ctx context.Context, userID int64) ([]Notification, error) {
	var ns []Notification
	err := s.db.SelectContext(ctx, &ns, `
		SELECT * FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`,
		userID, listLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications for user %d: %w", userID, err)
	}
	return ns, nil
}

// UnreadByUser returns the user's unread notifications, newest first.
func (s *sqliteStore) UnreadByUser(ctx context.Context, userID int64) ([]Notification, error) {
	var ns []Notification
	err := s.db.SelectContext(ctx, &ns, `
		SELECT * FROM notifications WHERE user_id = ? AND read = 0
		ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing unread notifications for user %d: %w", userID, err)
	}
	return ns, nil
}

// CountUnread returns the user's total unread count (not capped by
// the list limit).
func (s *sqliteStore) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications for user %d: %w", userID, err)
	}
	return n, nil
}

// MarkRead flips one notification's read flag. Scoped to the owning
// user so one user cannot touch another's records.
func (s *sqliteStore) MarkRead(ctx context.Context, userID int64, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAllRead flips all of the user's unread notifications and returns
// how many were affected.
func (s *sqliteStore) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read for user %d: %w", userID, err)
	}
	return res.RowsAffected()
}

// DeleteNotification removes one notification. Scoped to the owning
// user, like MarkRead.
func (s *sqliteStore) DeleteNotification(ctx context.Context, userID int64, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_UNIQUE in the message;
	// matching on text avoids pinning the driver's error type.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
