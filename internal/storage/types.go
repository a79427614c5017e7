package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicate reports that a notification for this (item, kind)
	// already exists. Callers treat it as "already fired", not a failure.
	ErrDuplicate = errors.New("notification already exists")
)

// Notification kinds. Kept as plain strings in the schema (CHECK
// constrained) so rows stay greppable.
const (
	KindReminder = "reminder"
	KindDueSoon  = "due_soon"
	KindOverdue  = "overdue"
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}

// User is the owner of items; read-only to this daemon.
type User struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Item is a work item with optional due and reminder timestamps.
// The engine reads items and clears RemindAt after a reminder fires;
// everything else is owned by the collaborating application.
type Item struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	DueAt       *time.Time `db:"due_at"`
	RemindAt    *time.Time `db:"remind_at"`
	Completed   bool       `db:"completed"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Notification is a durable record of a fired trigger. Immutable
// except for Read, which is flipped by the read API.
type Notification struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	ItemID    *int64    `db:"item_id"`
	Kind      string    `db:"kind"`
	Message   string    `db:"message"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

// ItemStore is the item-side contract the trigger scanner depends on.
// CreateUser/CreateItem exist for provisioning and tests; item CRUD
// proper is owned by the collaborating application.
type ItemStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	CreateItem(ctx context.Context, it Item) (Item, error)
	IncompleteByReminderWindow(ctx context.Context, start, end time.Time) ([]Item, error)
	IncompleteByDueWindow(ctx context.Context, start, end time.Time) ([]Item, error)
	ClearReminder(ctx context.Context, itemID int64) error
	GetOwner(ctx context.Context, itemID int64) (User, error)
}

// NotificationStore is the notification-side contract.
type NotificationStore interface {
	NotificationExists(ctx context.Context, itemID int64, kind string) (bool, error)
	InsertNotification(ctx context.Context, n Notification) (Notification, error)
	NotificationsByUser(ctx context.Context, userID int64) ([]Notification, error)
	UnreadByUser(ctx context.Context, userID int64) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID int64, id string) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	DeleteNotification(ctx context.Context, userID int64, id string) error
}

// Store is the full persistence API.
type Store interface {
	ItemStore
	NotificationStore
	Close() error
}
