package notify

import (
	"context"
	"sync"
	"time"

	"notifyd/internal/eventbus"
	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

// Config holds the hot-reloadable engine policy.
type Config struct {
	Windows Windows

	// OverdueEmail also emails overdue notifications.
	// Default is push-only for overdue.
	OverdueEmail bool
}

// Service is the notification engine: scan for triggered items, write
// their records, fan each one out. One Scan call per scheduler tick;
// the scheduler guarantees scans never overlap.
type Service struct {
	store storage.Store
	log   logx.Logger
	bus   eventbus.Bus

	scan scanner
	out  deliverer

	mu  sync.Mutex
	cfg Config
}

func NewService(cfg Config, store storage.Store, registry *Registry, mail EmailSender, bus eventbus.Bus, log logx.Logger) *Service {
	log = log.With(logx.String("comp", "notify"))
	s := &Service{
		store: store,
		log:   log,
		bus:   bus,
		cfg:   cfg,
		scan: scanner{
			items: store,
			notes: store,
			log:   log,
		},
		out: deliverer{
			registry: registry,
			mail:     mail,
			owners:   store,
			bus:      bus,
			log:      log,
		},
	}
	s.cfg.Windows = cfg.Windows.normalized()
	return s
}

// Apply swaps the engine policy. Takes effect on the next scan.
func (s *Service) Apply(cfg Config) {
	cfg.Windows = cfg.Windows.normalized()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Scan runs one full tick anchored at now: all three windows, then
// delivery for every created record. It never returns an error; store
// failures are isolated per window/item and reported in the ScanReport
// so the scheduler always proceeds to the next tick.
func (s *Service) Scan(ctx context.Context, now time.Time) ScanReport {
	cfg := s.config()
	started := time.Now()

	rep := s.scan.scan(ctx, now, cfg.Windows)

	for _, c := range rep.Created {
		s.out.deliver(ctx, c, cfg.OverdueEmail)
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{
				Type: eventbus.TypeNotificationCreated,
				Data: map[string]any{"id": c.Notification.ID, "kind": c.Notification.Kind, "user_id": c.Notification.UserID},
			})
		}
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeScanCompleted,
			Data: map[string]any{"created": len(rep.Created), "deduped": rep.Deduped, "errors": rep.WindowErrors + rep.ItemErrors},
		})
	}

	if len(rep.Created) > 0 || rep.WindowErrors > 0 || rep.ItemErrors > 0 {
		s.log.Info("scan completed",
			logx.Int("created", len(rep.Created)),
			logx.Int("scanned", rep.Scanned),
			logx.Int("deduped", rep.Deduped),
			logx.Int("window_errors", rep.WindowErrors),
			logx.Int("item_errors", rep.ItemErrors),
			logx.Duration("took", time.Since(started)),
		)
	} else {
		s.log.Debug("scan completed, nothing triggered", logx.Duration("took", time.Since(started)))
	}
	return rep
}
