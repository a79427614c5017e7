package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	logx "notifyd/pkg/logx"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(logx.Nop())

	c1 := &fakeConn{}
	c2 := &fakeConn{}

	reg.Register(7, c1)
	reg.Register(7, c2)
	if !reg.HasLiveConnection(7) {
		t.Fatal("expected live connection after register")
	}
	if got := reg.ConnCount(7); got != 2 {
		t.Fatalf("ConnCount = %d, want 2", got)
	}

	reg.Unregister(7, c1)
	if !reg.HasLiveConnection(7) {
		t.Fatal("one connection remains; user should still be live")
	}

	reg.Unregister(7, c2)
	if reg.HasLiveConnection(7) {
		t.Fatal("no connections remain; user should not be live")
	}
	// Empty user entries must be dropped entirely.
	if got := reg.Users(); got != 0 {
		t.Fatalf("Users = %d, want 0", got)
	}
}

func TestRegistryUnregisterUnknownIsNoop(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(logx.Nop())
	reg.Unregister(42, &fakeConn{})
	if reg.HasLiveConnection(42) {
		t.Fatal("unknown user reported live")
	}
}

func TestRegistryBroadcast(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(logx.Nop())

	ok1 := &fakeConn{}
	ok2 := &fakeConn{}
	bad := &fakeConn{fail: true}
	reg.Register(7, ok1)
	reg.Register(7, ok2)
	reg.Register(7, bad)

	ev := Event{ID: "n1", Type: "due_soon", Message: "Due soon: Pay rent", CreatedAt: time.Now()}
	if got := reg.Broadcast(context.Background(), 7, ev); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
	if len(ok1.received()) != 1 || len(ok2.received()) != 1 {
		t.Fatal("healthy connections did not receive the event")
	}

	// Offline user: zero recipients, not an error.
	if got := reg.Broadcast(context.Background(), 99, ev); got != 0 {
		t.Fatalf("offline delivered = %d, want 0", got)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(logx.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		uid := int64(i % 4)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c := &fakeConn{}
				reg.Register(uid, c)
				reg.Broadcast(context.Background(), uid, Event{ID: "x"})
				reg.HasLiveConnection(uid)
				reg.Unregister(uid, c)
			}
		}()
	}
	wg.Wait()

	if got := reg.Users(); got != 0 {
		t.Fatalf("Users = %d after all unregistered, want 0", got)
	}
}
