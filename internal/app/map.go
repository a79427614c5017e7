package app

import (
	"fmt"
	"net"
	"strings"
	"time"

	"notifyd/internal/config"
	"notifyd/internal/mail"
	"notifyd/internal/notify"
	"notifyd/internal/observability/pprof"
	"notifyd/internal/scheduler"
	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

// Mapping between the config file shape and each component's own
// config type. Every mapper validates what it parses, so the config
// validator can reuse them to reject a bad hot-reload before commit.

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alerts: logx.AlertConfig{
			Enabled:    cfg.Logging.Alerts.Enabled,
			To:         cfg.Logging.Alerts.To,
			MinLevel:   cfg.Logging.Alerts.MinLevel,
			RatePerSec: cfg.Logging.Alerts.RatePerSec,
		},
	}
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return storage.Config{}, fmt.Errorf("storage.path is required")
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: cfg.Storage.Path, BusyTimeout: busy}, nil
}

func mapMail(cfg *config.Config) (mail.Config, error) {
	timeout, err := config.ParseDurationOrDefault("email.timeout", cfg.Email.Timeout, 15*time.Second)
	if err != nil {
		return mail.Config{}, err
	}
	if cfg.Email.Enabled {
		if strings.TrimSpace(cfg.Email.Host) == "" {
			return mail.Config{}, fmt.Errorf("email.host is required when email.enabled is true")
		}
		if strings.TrimSpace(cfg.Email.From) == "" {
			return mail.Config{}, fmt.Errorf("email.from is required when email.enabled is true")
		}
	}
	return mail.Config{
		Enabled:    cfg.Email.Enabled,
		Host:       cfg.Email.Host,
		Port:       cfg.Email.Port,
		Username:   cfg.Email.Username,
		Password:   cfg.Email.Password,
		From:       cfg.Email.From,
		Timeout:    timeout,
		RatePerSec: cfg.Email.RatePerSec,
	}, nil
}

// mapNotify parses the scan interval and windows. Every window must be
// at least as wide as the tick interval, otherwise jitter or a skipped
// tick could drop a trigger.
func mapNotify(cfg *config.Config) (notify.Config, time.Duration, error) {
	interval, err := config.ParseDurationOrDefault("notify.interval", cfg.Notify.Interval, time.Minute)
	if err != nil {
		return notify.Config{}, 0, err
	}
	if interval < time.Second {
		return notify.Config{}, 0, fmt.Errorf("notify.interval %s is too short", interval)
	}

	def := notify.DefaultWindows()
	w := notify.Windows{}
	if w.ReminderHalf, err = config.ParseDurationOrDefault("notify.reminder_window", cfg.Notify.ReminderWindow, def.ReminderHalf); err != nil {
		return notify.Config{}, 0, err
	}
	if w.DueSoonLead, err = config.ParseDurationOrDefault("notify.due_soon_lead", cfg.Notify.DueSoonLead, def.DueSoonLead); err != nil {
		return notify.Config{}, 0, err
	}
	if w.DueSoonWidth, err = config.ParseDurationOrDefault("notify.due_soon_window", cfg.Notify.DueSoonWindow, def.DueSoonWidth); err != nil {
		return notify.Config{}, 0, err
	}
	if w.OverdueGrace, err = config.ParseDurationOrDefault("notify.overdue_grace", cfg.Notify.OverdueGrace, def.OverdueGrace); err != nil {
		return notify.Config{}, 0, err
	}

	for name, width := range map[string]time.Duration{
		"notify.reminder_window": 2 * w.ReminderHalf,
		"notify.due_soon_window": w.DueSoonWidth,
		"notify.overdue_grace":   w.OverdueGrace,
	} {
		if width < interval {
			return notify.Config{}, 0, fmt.Errorf("%s (%s) must be >= notify.interval (%s)", name, width, interval)
		}
	}
	if w.DueSoonWidth > w.DueSoonLead {
		return notify.Config{}, 0, fmt.Errorf("notify.due_soon_window must not exceed notify.due_soon_lead")
	}

	return notify.Config{
		Windows:      w,
		OverdueEmail: cfg.Email.OverdueEmail,
	}, interval, nil
}

func mapPprof(cfg *config.Config) (pprof.Config, error) {
	pc := cfg.Pprof
	readTO, err := config.ParseDurationOrDefault("pprof.read_timeout", pc.ReadTimeout, 5*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	writeTO, err := config.ParseDurationField("pprof.write_timeout", pc.WriteTimeout)
	if err != nil {
		return pprof.Config{}, err
	}
	idleTO, err := config.ParseDurationOrDefault("pprof.idle_timeout", pc.IdleTimeout, 120*time.Second)
	if err != nil {
		return pprof.Config{}, err
	}
	if pc.MutexProfileFraction < 0 {
		return pprof.Config{}, fmt.Errorf("pprof.mutex_profile_fraction must be >= 0")
	}
	if pc.BlockProfileRate < 0 {
		return pprof.Config{}, fmt.Errorf("pprof.block_profile_rate must be >= 0")
	}
	out := pprof.Config{
		Enabled:              pc.Enabled,
		Addr:                 strings.TrimSpace(pc.Addr),
		Prefix:               strings.TrimSpace(pc.Prefix),
		Token:                strings.TrimSpace(pc.Token),
		AllowInsecure:        pc.AllowInsecure,
		ReadTimeout:          readTO,
		WriteTimeout:         writeTO,
		IdleTimeout:          idleTO,
		MutexProfileFraction: pc.MutexProfileFraction,
		BlockProfileRate:     pc.BlockProfileRate,
	}
	if out.Enabled && out.Addr != "" {
		if _, _, err := net.SplitHostPort(out.Addr); err != nil {
			return pprof.Config{}, fmt.Errorf("pprof.addr: invalid %q (expected host:port): %w", out.Addr, err)
		}
	}
	return out, nil
}

func mapScheduler(cfg *config.Config) (scheduler.Config, error) {
	timeout, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	if cfg.Scheduler.Workers < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.workers must be >= 0")
	}
	if cfg.Scheduler.HistorySize < 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler.history_size must be >= 0")
	}
	if tz := strings.TrimSpace(cfg.Notify.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return scheduler.Config{}, fmt.Errorf("notify.timezone: invalid %q: %w", tz, err)
		}
	}
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Workers:        cfg.Scheduler.Workers,
		DefaultTimeout: timeout,
		HistorySize:    cfg.Scheduler.HistorySize,
		Timezone:       cfg.Notify.Timezone,
	}, nil
}
