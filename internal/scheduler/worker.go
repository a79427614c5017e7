package scheduler

import (
	"context"
	"time"

	logx "notifyd/pkg/logx"
)

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("scheduler not running; dropping task", logx.String("task", t.name))
		return
	}
	select {
	case q <- t:
		// ok
	default:
		s.log.Warn("scheduler queue full; dropping task", logx.String("task", t.name), logx.Int("queue_len", len(q)), logx.Int("queue_cap", cap(q)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	start := time.Now()
	s.publish("task.started", TaskEvent{ID: t.id, Name: t.name, Started: start})

	// Mark running for overlap control (shared state between cron invocations).
	if t.state != nil {
		t.state.mu.Lock()
		t.state.running = true
		t.state.mu.Unlock()
		defer func() {
			t.state.mu.Lock()
			t.state.running = false
			t.state.mu.Unlock()
		}()
	}

	runCtx := ctx
	var cancel func()
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	err := t.run(runCtx)
	if cancel != nil {
		cancel()
	}

	dur := time.Since(start)
	item := HistoryItem{ID: t.id, Name: t.name, Started: start, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", t.name), logx.Err(err), logx.Duration("dur", dur))
		s.publish("task.failed", TaskEvent{ID: t.id, Name: t.name, Started: start, Duration: dur, Error: item.Error})
	} else {
		// Avoid noisy logs for very frequent tasks: only elevate to INFO
		// when it took noticeable time.
		if dur >= 750*time.Millisecond {
			s.log.Info("task completed", logx.String("task", t.name), logx.Duration("dur", dur))
		} else {
			s.log.Debug("task completed", logx.String("task", t.name), logx.Duration("dur", dur))
		}
		s.publish("task.finished", TaskEvent{ID: t.id, Name: t.name, Started: start, Duration: dur})
	}

	s.mu.Lock()
	historySize := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	// A zero/negative history_size would mean unbounded growth on a
	// long-running daemon, so cap it.
	if historySize <= 0 {
		historySize = 200
	}
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}
