package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateUser inserts a user row. Users are owned by the collaborating
// application; this exists for provisioning and tests.
func (s *sqliteStore) CreateUser(ctx context.Context, u User) (User, error) {
	if strings.TrimSpace(u.Email) == "" {
		return User{}, errors.New("user email must not be empty")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(email, name, created_at) VALUES(?,?,?)`,
		u.Email, u.Name, u.CreatedAt.UTC(),
	)
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// CreateItem inserts an item row. Item mutation beyond ClearReminder is
// owned by the collaborating application; this exists for provisioning
// and tests.
func (s *sqliteStore) CreateItem(ctx context.Context, it Item) (Item, error) {
	if strings.TrimSpace(it.Title) == "" {
		return Item{}, errors.New("item title must not be empty")
	}
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO items (user_id, title, description, due_at, remind_at, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.UserID, it.Title, it.Description, utcPtr(it.DueAt), utcPtr(it.RemindAt),
		it.Completed, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return Item{}, fmt.Errorf("creating item: %w", err)
	}
	it.ID, err = res.LastInsertId()
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

// IncompleteByReminderWindow returns incomplete items whose reminder
// timestamp falls inside [start, end].
func (s *sqliteStore) IncompleteByReminderWindow(ctx context.Context, start, end time.Time) ([]Item, error) {
	var items []Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM items
		WHERE completed = 0
		  AND remind_at IS NOT NULL
		  AND remind_at BETWEEN ? AND ?
		ORDER BY remind_at`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying reminder window: %w", err)
	}
	return items, nil
}

// IncompleteByDueWindow returns incomplete items whose due timestamp
// falls inside [start, end].
func (s *sqliteStore) IncompleteByDueWindow(ctx context.Context, start, end time.Time) ([]Item, error) {
	var items []Item
	err := s.db.SelectContext(ctx, &items, `
		SELECT * FROM items
		WHERE completed = 0
		  AND due_at IS NOT NULL
		  AND due_at BETWEEN ? AND ?
		ORDER BY due_at`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying due window: %w", err)
	}
	return items, nil
}

// ClearReminder nulls the item's reminder timestamp so the reminder
// window never re-matches it.
func (s *sqliteStore) ClearReminder(ctx context.Context, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET remind_at = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), itemID,
	)
	if err != nil {
		return fmt.Errorf("clearing reminder for item %d: %w", itemID, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return nil
}

// GetOwner resolves the owning user of an item.
func (s *sqliteStore) GetOwner(ctx context.Context, itemID int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `
		SELECT u.* FROM users u
		JOIN items i ON i.user_id = u.id
		WHERE i.id = ?`,
		itemID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("owner of item %d: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("resolving owner of item %d: %w", itemID, err)
	}
	return u, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
