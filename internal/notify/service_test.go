package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

// fakeStore is an in-memory storage.Store for engine tests.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*storage.Item
	users  map[int64]storage.User
	notes  []storage.Notification

	failDueWindow      bool
	failReminderWindow bool
	failInsert         bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items: map[int64]*storage.Item{},
		users: map[int64]storage.User{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, u storage.User) (storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) CreateItem(_ context.Context, it storage.Item) (storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	it.ID = f.nextID
	f.items[it.ID] = &it
	return it, nil
}

func (f *fakeStore) IncompleteByReminderWindow(_ context.Context, start, end time.Time) ([]storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReminderWindow {
		return nil, errors.New("reminder window query boom")
	}
	var out []storage.Item
	for _, it := range f.items {
		if it.Completed || it.RemindAt == nil {
			continue
		}
		if !it.RemindAt.Before(start) && !it.RemindAt.After(end) {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) IncompleteByDueWindow(_ context.Context, start, end time.Time) ([]storage.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDueWindow {
		return nil, errors.New("due window query boom")
	}
	var out []storage.Item
	for _, it := range f.items {
		if it.Completed || it.DueAt == nil {
			continue
		}
		if !it.DueAt.Before(start) && !it.DueAt.After(end) {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) ClearReminder(_ context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok {
		return storage.ErrNotFound
	}
	it.RemindAt = nil
	return nil
}

func (f *fakeStore) GetOwner(_ context.Context, itemID int64) (storage.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	u, ok := f.users[it.UserID]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) NotificationExists(_ context.Context, itemID int64, kind string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.ItemID != nil && *n.ItemID == itemID && n.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertNotification(_ context.Context, n storage.Notification) (storage.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		return storage.Notification{}, errors.New("insert boom")
	}
	if n.ItemID != nil && (n.Kind == storage.KindDueSoon || n.Kind == storage.KindOverdue) {
		for _, ex := range f.notes {
			if ex.ItemID != nil && *ex.ItemID == *n.ItemID && ex.Kind == n.Kind {
				return storage.Notification{}, storage.ErrDuplicate
			}
		}
	}
	if n.ID == "" {
		n.ID = fmt.Sprintf("n%d", len(f.notes)+1)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	f.notes = append(f.notes, n)
	return n, nil
}

func (f *fakeStore) NotificationsByUser(_ context.Context, userID int64) ([]storage.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Notification
	for _, n := range f.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) UnreadByUser(_ context.Context, userID int64) ([]storage.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Notification
	for _, n := range f.notes {
		if n.UserID == userID && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkRead(_ context.Context, userID int64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notes {
		if f.notes[i].ID == id && f.notes[i].UserID == userID {
			f.notes[i].Read = true
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) CountUnread(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, note := range f.notes {
		if note.UserID == userID && !note.Read {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteNotification(_ context.Context, userID int64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notes {
		if f.notes[i].ID == id && f.notes[i].UserID == userID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.notes {
		if f.notes[i].UserID == userID && !f.notes[i].Read {
			f.notes[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) notifications() []storage.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Notification, len(f.notes))
	copy(out, f.notes)
	return out
}

func (f *fakeStore) byKind(kind string) []storage.Notification {
	var out []storage.Notification
	for _, n := range f.notifications() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type sentMail struct {
	to   string
	kind string
	item storage.Item
}

type fakeMail struct {
	mu   sync.Mutex
	fail bool
	sent []sentMail
}

func (m *fakeMail) SendItem(_ context.Context, to, kind string, it storage.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp boom")
	}
	m.sent = append(m.sent, sentMail{to: to, kind: kind, item: it})
	return nil
}

func (m *fakeMail) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sent))
	copy(out, m.sent)
	return out
}

type fakeConn struct {
	mu     sync.Mutex
	fail   bool
	events []Event
}

func (c *fakeConn) Send(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("conn boom")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func ptrTime(t time.Time) *time.Time { return &t }

func newTestEngine(t *testing.T, store *fakeStore, mail EmailSender, cfg Config) (*Service, *Registry) {
	t.Helper()
	reg := NewRegistry(logx.Nop())
	return NewService(cfg, store, reg, mail, nil, logx.Nop()), reg
}

func seedUserItem(t *testing.T, store *fakeStore, email, title string, due, remind *time.Time) (storage.User, storage.Item) {
	t.Helper()
	u, err := store.CreateUser(context.Background(), storage.User{Email: email, Name: "u"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	it, err := store.CreateItem(context.Background(), storage.Item{
		UserID:   u.ID,
		Title:    title,
		DueAt:    due,
		RemindAt: remind,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return u, it
}

func TestScanDueSoonCreatesExactlyOnceAcrossTicks(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	mail := &fakeMail{}
	eng, reg := newTestEngine(t, store, mail, Config{})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	u, _ := seedUserItem(t, store, "pay@example.com", "Pay rent", ptrTime(now.Add(58*time.Minute)), nil)

	conn := &fakeConn{}
	reg.Register(u.ID, conn)

	rep := eng.Scan(context.Background(), now)
	if got := len(rep.Created); got != 1 {
		t.Fatalf("first scan created = %d, want 1", got)
	}
	n := rep.Created[0].Notification
	if n.Kind != storage.KindDueSoon {
		t.Fatalf("kind = %s, want %s", n.Kind, storage.KindDueSoon)
	}
	if n.Message != "Due soon: Pay rent" {
		t.Fatalf("message = %q", n.Message)
	}
	if n.UserID != u.ID {
		t.Fatalf("user = %d, want %d", n.UserID, u.ID)
	}

	// The window still matches one minute later; dedup must suppress it.
	rep2 := eng.Scan(context.Background(), now.Add(time.Minute))
	if got := len(rep2.Created); got != 0 {
		t.Fatalf("second scan created = %d, want 0", got)
	}
	if rep2.Deduped == 0 {
		t.Fatal("second scan should report a deduped match")
	}
	if got := len(store.byKind(storage.KindDueSoon)); got != 1 {
		t.Fatalf("due_soon records = %d, want 1", got)
	}

	// Push and email both fired once.
	if got := len(conn.received()); got != 1 {
		t.Fatalf("pushed events = %d, want 1", got)
	}
	ev := conn.received()[0]
	if ev.Type != storage.KindDueSoon || ev.Message != "Due soon: Pay rent" {
		t.Fatalf("unexpected event %+v", ev)
	}
	sent := mail.all()
	if len(sent) != 1 || sent[0].to != "pay@example.com" || sent[0].kind != storage.KindDueSoon {
		t.Fatalf("unexpected mail %+v", sent)
	}
}

func TestScanReminderFiresOnceAndClearsTimestamp(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	eng, _ := newTestEngine(t, store, nil, Config{})

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, it := seedUserItem(t, store, "r@example.com", "Water plants", nil, ptrTime(now.Add(-2*time.Minute)))

	rep := eng.Scan(context.Background(), now)
	if len(rep.Created) != 1 || rep.Created[0].Notification.Kind != storage.KindReminder {
		t.Fatalf("unexpected created %+v", rep.Created)
	}
	if rep.Created[0].Notification.Message != "Reminder: Water plants" {
		t.Fatalf("message = %q", rep.Created[0].Notification.Message)
	}

	store.mu.Lock()
	cleared := store.items[it.ID].RemindAt == nil
	store.mu.Unlock()
	if !cleared {
		t.Fatal("remind_at not cleared after firing")
	}

	rep2 := eng.Scan(context.Background(), now.Add(time.Minute))
	if len(rep2.Created) != 0 {
		t.Fatalf("second scan created = %d, want 0", len(rep2.Created))
	}
	if got := len(store.byKind(storage.KindReminder)); got != 1 {
		t.Fatalf("reminder records = %d, want 1", got)
	}
}

func TestScanOverduePushOnlyByDefault(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	mail := &fakeMail{}
	eng, reg := newTestEngine(t, store, mail, Config{})

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	u, _ := seedUserItem(t, store, "o@example.com", "File taxes", ptrTime(now.Add(-2*time.Minute)), nil)
	conn := &fakeConn{}
	reg.Register(u.ID, conn)

	rep := eng.Scan(context.Background(), now)
	if len(rep.Created) != 1 || rep.Created[0].Notification.Kind != storage.KindOverdue {
		t.Fatalf("unexpected created %+v", rep.Created)
	}
	if got := len(conn.received()); got != 1 {
		t.Fatalf("pushed = %d, want 1", got)
	}
	if got := len(mail.all()); got != 0 {
		t.Fatalf("overdue emailed %d times, want 0 by default", got)
	}

	// Consecutive overlapping scans stay deduplicated.
	eng.Scan(context.Background(), now.Add(time.Minute))
	if got := len(store.byKind(storage.KindOverdue)); got != 1 {
		t.Fatalf("overdue records = %d, want 1", got)
	}
}

func TestScanOverdueEmailPolicyKnob(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	mail := &fakeMail{}
	eng, _ := newTestEngine(t, store, mail, Config{OverdueEmail: true})

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	seedUserItem(t, store, "o@example.com", "File taxes", ptrTime(now.Add(-time.Minute)), nil)

	eng.Scan(context.Background(), now)
	sent := mail.all()
	if len(sent) != 1 || sent[0].kind != storage.KindOverdue {
		t.Fatalf("unexpected mail %+v", sent)
	}
}

func TestEmailFailureDoesNotBlockPersistenceOrPush(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	mail := &fakeMail{fail: true}
	eng, reg := newTestEngine(t, store, mail, Config{})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	u, _ := seedUserItem(t, store, "f@example.com", "Ship release", ptrTime(now.Add(57*time.Minute)), nil)
	conn := &fakeConn{}
	reg.Register(u.ID, conn)

	rep := eng.Scan(context.Background(), now)
	if len(rep.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(rep.Created))
	}
	if got := len(store.byKind(storage.KindDueSoon)); got != 1 {
		t.Fatal("notification record missing after email failure")
	}
	if got := len(conn.received()); got != 1 {
		t.Fatalf("push not attempted after email failure (got %d)", got)
	}
}

func TestScanWindowFailureIsIsolated(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	eng, _ := newTestEngine(t, store, nil, Config{})

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	seedUserItem(t, store, "a@example.com", "Standup", nil, ptrTime(now))
	store.failDueWindow = true

	rep := eng.Scan(context.Background(), now)
	// Both due-class windows failed; the reminder window still ran.
	if rep.WindowErrors != 2 {
		t.Fatalf("window errors = %d, want 2", rep.WindowErrors)
	}
	if len(rep.Created) != 1 || rep.Created[0].Notification.Kind != storage.KindReminder {
		t.Fatalf("reminder window did not run: %+v", rep.Created)
	}
}

func TestScanInsertFailureRetriesNextTick(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	eng, _ := newTestEngine(t, store, nil, Config{})

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	_, it := seedUserItem(t, store, "a@example.com", "Standup", nil, ptrTime(now))

	store.failInsert = true
	rep := eng.Scan(context.Background(), now)
	if len(rep.Created) != 0 || rep.ItemErrors != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	store.mu.Lock()
	stillSet := store.items[it.ID].RemindAt != nil
	store.mu.Unlock()
	if !stillSet {
		t.Fatal("remind_at cleared even though insert failed")
	}

	store.failInsert = false
	rep2 := eng.Scan(context.Background(), now.Add(time.Minute))
	if len(rep2.Created) != 1 {
		t.Fatalf("retry scan created = %d, want 1", len(rep2.Created))
	}
}

func TestCompletedItemsNeverTrigger(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	eng, _ := newTestEngine(t, store, nil, Config{})

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	u, _ := seedUserItem(t, store, "c@example.com", "Done thing", ptrTime(now.Add(-time.Minute)), ptrTime(now))
	store.mu.Lock()
	for _, it := range store.items {
		if it.UserID == u.ID {
			it.Completed = true
		}
	}
	store.mu.Unlock()

	rep := eng.Scan(context.Background(), now)
	if len(rep.Created) != 0 {
		t.Fatalf("completed item triggered %d notifications", len(rep.Created))
	}
}
