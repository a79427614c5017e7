package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

func TestRenderItemSubjects(t *testing.T) {
	t.Parallel()
	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	it := storage.Item{Title: "Pay rent", Description: "wire transfer", DueAt: &due}

	cases := []struct {
		kind    string
		subject string
		heading string
	}{
		{storage.KindReminder, "Reminder: Pay rent", "Reminder"},
		{storage.KindDueSoon, "Due Soon: Pay rent", "Due Soon"},
		{storage.KindOverdue, "Overdue: Pay rent", "Overdue"},
	}
	for _, tc := range cases {
		subject, html, text, err := renderItem(tc.kind, it)
		if err != nil {
			t.Fatalf("renderItem(%s): %v", tc.kind, err)
		}
		if subject != tc.subject {
			t.Fatalf("subject = %q, want %q", subject, tc.subject)
		}
		if !strings.Contains(html, tc.heading) || !strings.Contains(html, "Pay rent") {
			t.Fatalf("html missing heading/title: %s", html)
		}
		if !strings.Contains(text, "wire transfer") {
			t.Fatalf("text missing description: %s", text)
		}
		if !strings.Contains(text, "Due: Sun, 01 Mar 2026 09:00 UTC") {
			t.Fatalf("text missing due line: %s", text)
		}
	}
}

func TestRenderItemUnknownKind(t *testing.T) {
	t.Parallel()
	if _, _, _, err := renderItem("nonsense", storage.Item{Title: "x"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRenderItemNoDueDate(t *testing.T) {
	t.Parallel()
	_, html, text, err := renderItem(storage.KindReminder, storage.Item{Title: "Water plants"})
	if err != nil {
		t.Fatalf("renderItem: %v", err)
	}
	if strings.Contains(html, "Due:") || strings.Contains(text, "Due:") {
		t.Fatal("bodies should omit the due line when there is no due date")
	}
}

func TestRenderItemEscapesHTML(t *testing.T) {
	t.Parallel()
	it := storage.Item{Title: `<script>alert("x")</script>`}
	_, html, _, err := renderItem(storage.KindReminder, it)
	if err != nil {
		t.Fatalf("renderItem: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("html body not escaped: %s", html)
	}
}

func TestComposeMultipart(t *testing.T) {
	t.Parallel()
	msg, err := compose("bot@example.com", "user@example.com", "Reminder: Pay rent", "<p>hi</p>", "hi")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	s := string(msg)
	for _, want := range []string{
		"From: <bot@example.com>",
		"To: <user@example.com>",
		"Subject: Reminder: Pay rent",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("message missing %q:\n%s", want, s)
		}
	}
	// text part must precede the html part per multipart/alternative convention
	if strings.Index(s, "text/plain") > strings.Index(s, "text/html") {
		t.Fatal("text/plain part should come before text/html")
	}
}

func TestSendDisabled(t *testing.T) {
	t.Parallel()
	m := New(Config{Enabled: false}, logx.Nop())
	err := m.Send(context.Background(), "user@example.com", "s", "<p>h</p>", "h")
	if err != ErrDisabled {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}
