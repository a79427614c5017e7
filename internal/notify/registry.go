package notify

import (
	"context"
	"sync"

	logx "notifyd/pkg/logx"
)

// Registry tracks live push connections per user.
//
// It is the only shared mutable state between the connection lifecycle
// (arbitrarily concurrent register/unregister from client sessions) and
// the scheduler-driven delivery path, so every operation takes the
// registry lock. Operation volume is low; a coarse RWMutex is enough.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]map[PushConn]struct{}
	log   logx.Logger
}

func NewRegistry(log logx.Logger) *Registry {
	return &Registry{
		conns: make(map[int64]map[PushConn]struct{}),
		log:   log.With(logx.String("comp", "registry")),
	}
}

// Register adds a connection to the user's live set.
func (r *Registry) Register(userID int64, c PushConn) {
	if c == nil {
		return
	}
	r.mu.Lock()
	set := r.conns[userID]
	if set == nil {
		set = make(map[PushConn]struct{})
		r.conns[userID] = set
	}
	set[c] = struct{}{}
	n := len(set)
	r.mu.Unlock()

	r.log.Debug("connection registered", logx.Int64("user_id", userID), logx.Int("live", n))
}

// Unregister removes a connection. When the user's set empties, the
// user entry is dropped so disconnected users do not accumulate.
func (r *Registry) Unregister(userID int64, c PushConn) {
	r.mu.Lock()
	set := r.conns[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	n := len(set)
	r.mu.Unlock()

	r.log.Debug("connection unregistered", logx.Int64("user_id", userID), logx.Int("live", n))
}

// HasLiveConnection reports whether the user has at least one live
// push connection.
func (r *Registry) HasLiveConnection(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// ConnCount returns the user's live connection count.
func (r *Registry) ConnCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Users returns how many users currently have live connections.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Broadcast delivers the event to every live connection of the user
// and returns how many sends succeeded. Zero recipients is not an
// error; send failures are logged and otherwise ignored (the transport
// unregisters dead connections from its own read loop).
func (r *Registry) Broadcast(ctx context.Context, userID int64, ev Event) int {
	// Snapshot under the read lock; sends happen outside it so a slow
	// connection never blocks register/unregister.
	r.mu.RLock()
	targets := make([]PushConn, 0, len(r.conns[userID]))
	for c := range r.conns[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if err := c.Send(ctx, ev); err != nil {
			r.log.Debug("push send failed", logx.Int64("user_id", userID), logx.String("notification_id", ev.ID), logx.Err(err))
			continue
		}
		delivered++
	}
	return delivered
}
