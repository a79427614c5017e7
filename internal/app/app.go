// Package app wires the daemon together: config manager, logging
// service, storage, the notification engine, the scheduler that drives
// it, and the HTTP push/API transport.
package app

import (
	"context"
	"fmt"
	"time"

	"notifyd/internal/config"
	"notifyd/internal/eventbus"
	"notifyd/internal/mail"
	"notifyd/internal/notify"
	"notifyd/internal/observability/pprof"
	"notifyd/internal/runtime/supervisor"
	"notifyd/internal/scheduler"
	"notifyd/internal/storage"
	"notifyd/internal/transport/httpd"
	logx "notifyd/pkg/logx"
)

const scanSchedule = "notify.scan"

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    storage.Store
	registry *notify.Registry
	mailer   *mail.Mailer
	engine   *notify.Service
	sched    *scheduler.Service
	httpd    *httpd.Server
	prof     *pprof.Service

	scanInterval time.Duration
	scanTimeout  time.Duration
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg), nil)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	stCfg, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	log.Info("storage ready", logx.String("path", stCfg.Path))

	mailCfg, err := mapMail(cfg)
	if err != nil {
		return nil, err
	}
	mailer := mail.New(mailCfg, log)
	// The alert sink emails through the same channel as notifications.
	logSvc.SetAlertSender(mailer)

	registry := notify.NewRegistry(log)

	notifyCfg, interval, err := mapNotify(cfg)
	if err != nil {
		return nil, err
	}
	var emailCh notify.EmailSender
	if mailCfg.Enabled {
		emailCh = mailer
	}
	engine := notify.NewService(notifyCfg, store, registry, emailCh, bus, log)

	schedCfg, err := mapScheduler(cfg)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedCfg, log, bus)

	var httpSrv *httpd.Server
	if cfg.HTTP.Enabled {
		if cfg.HTTP.JWTSecret == "" {
			return nil, fmt.Errorf("http.jwt_secret is required when http.enabled is true")
		}
		httpSrv = httpd.New(httpd.Config{
			Addr:      cfg.HTTP.Addr,
			JWTSecret: cfg.HTTP.JWTSecret,
		}, registry, store, sched, log)
	}

	profCfg, err := mapPprof(cfg)
	if err != nil {
		return nil, err
	}
	prof := pprof.New(profCfg, log)

	scanTimeout := schedCfg.DefaultTimeout
	if scanTimeout <= 0 {
		scanTimeout = interval
	}

	return &App{
		cfgPath:      cfgPath,
		cfgm:         cfgm,
		log:          log,
		logs:         logSvc,
		bus:          bus,
		store:        store,
		registry:     registry,
		mailer:       mailer,
		engine:       engine,
		sched:        sched,
		httpd:        httpSrv,
		prof:         prof,
		scanInterval: interval,
		scanTimeout:  scanTimeout,
	}, nil
}

// Registry exposes the connection registry (for tests and embedding).
func (a *App) Registry() *notify.Registry { return a.registry }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorage(cfg); err != nil {
			return err
		}
		if _, err := mapMail(cfg); err != nil {
			return err
		}
		if _, _, err := mapNotify(cfg); err != nil {
			return err
		}
		if _, err := mapScheduler(cfg); err != nil {
			return err
		}
		if _, err := mapPprof(cfg); err != nil {
			return err
		}
		if cfg.HTTP.Enabled && cfg.HTTP.JWTSecret == "" {
			return fmt.Errorf("http.jwt_secret is required when http.enabled is true")
		}
		return nil
	})

	a.registerScan(a.scanInterval, a.scanTimeout)
	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}

	if a.httpd != nil {
		a.sup.Go("httpd", a.httpd.Start)
	}
	a.prof.Start()

	// Debug-level event log for observability.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started", logx.Duration("scan_interval", a.scanInterval))
	return nil
}

// registerScan (re)registers the periodic scan. Upsert-by-name keeps
// interval changes from hot reload idempotent; skip-if-running keeps
// scans from ever overlapping.
func (a *App) registerScan(interval, timeout time.Duration) {
	_, err := a.sched.AddIntervalOpt(scanSchedule, interval, timeout,
		scheduler.TaskOptions{Overlap: scheduler.OverlapSkipIfRunning},
		func(c context.Context) error {
			a.engine.Scan(c, time.Now())
			return nil
		})
	if err != nil {
		a.log.Error("registering scan schedule failed", logx.Err(err))
	}
}
