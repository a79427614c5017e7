package httpd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"notifyd/internal/notify"
	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

// fakeNotes implements storage.NotificationStore over a slice.
type fakeNotes struct {
	mu    sync.Mutex
	notes []storage.Notification
}

func (f *fakeNotes) NotificationExists(context.Context, int64, string) (bool, error) {
	return false, nil
}

func (f *fakeNotes) InsertNotification(_ context.Context, n storage.Notification) (storage.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
	return n, nil
}

func (f *fakeNotes) NotificationsByUser(_ context.Context, userID int64) ([]storage.Notification, error) {
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

func (f *fakeNotes) UnreadByUser(_ context.Context, userID int64) ([]storage.Notification, error) {
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

func (f *fakeNotes) CountUnread(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c int64
	for _, n := range f.notes {
		if n.UserID == userID && !n.Read {
			c++
		}
	}
	return c, nil
}

func (f *fakeNotes) MarkRead(_ context.Context, userID int64, id string) error {
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

func (f *fakeNotes) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c int64
	for i := range f.notes {
		if f.notes[i].UserID == userID && !f.notes[i].Read {
			f.notes[i].Read = true
			c++
		}
	}
	return c, nil
}

func (f *fakeNotes) DeleteNotification(_ context.Context, userID int64, id string) error {
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

const apiTestSecret = "api-test-secret"

func newTestServer(t *testing.T, store storage.NotificationStore) *Server {
	t.Helper()
	return New(Config{Addr: ":0", JWTSecret: apiTestSecret},
		notify.NewRegistry(logx.Nop()), store, nil, logx.Nop())
}

func do(t *testing.T, s *Server, method, target string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	tok := signToken(t, []byte(apiTestSecret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID,
	})
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestDeleteNotificationEndpoint(t *testing.T) {
	t.Parallel()
	store := &fakeNotes{notes: []storage.Notification{
		{ID: "n1", UserID: 7, Kind: storage.KindReminder, Message: "Reminder: x"},
	}}
	s := newTestServer(t, store)

	// Another user's token must not reach the record.
	if w := do(t, s, http.MethodDelete, "/api/notifications/n1", 8); w.Code != http.StatusNotFound {
		t.Fatalf("cross-user delete = %d, want 404", w.Code)
	}

	if w := do(t, s, http.MethodDelete, "/api/notifications/n1", 7); w.Code != http.StatusOK {
		t.Fatalf("delete = %d, want 200", w.Code)
	}
	if ns, _ := store.NotificationsByUser(context.Background(), 7); len(ns) != 0 {
		t.Fatalf("record still present after delete: %v", ns)
	}

	// Gone means gone.
	if w := do(t, s, http.MethodDelete, "/api/notifications/n1", 7); w.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", w.Code)
	}
}

func TestListIncludesUnreadCount(t *testing.T) {
	t.Parallel()
	store := &fakeNotes{notes: []storage.Notification{
		{ID: "n1", UserID: 7, Kind: storage.KindReminder, Message: "Reminder: a"},
		{ID: "n2", UserID: 7, Kind: storage.KindDueSoon, Message: "Due soon: b", Read: true},
	}}
	s := newTestServer(t, store)

	w := do(t, s, http.MethodGet, "/api/notifications", 7)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, want 200", w.Code)
	}
	var body struct {
		Notifications []notificationJSON `json:"notifications"`
		UnreadCount   int64              `json:"unreadCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Notifications) != 2 {
		t.Fatalf("notifications = %d, want 2", len(body.Notifications))
	}
	if body.UnreadCount != 1 {
		t.Fatalf("unreadCount = %d, want 1", body.UnreadCount)
	}
}
