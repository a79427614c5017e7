package config

import (
	"strings"

	logx "notifyd/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging. Secrets (jwt_secret, smtp
// password) are never included, only whether they are set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alerts", newCfg.Logging.Alerts.Enabled),
		)
	}

	// Storage (restart required)
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.path", newCfg.Storage.Path))
	}

	// HTTP (never log the secret)
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.jwt_secret_set", strings.TrimSpace(newCfg.HTTP.JWTSecret) != ""),
		)
	}

	// Email (never log credentials)
	if oldCfg.Email != newCfg.Email {
		changed = append(changed, "email")
		attrs = append(attrs,
			logx.Bool("email.enabled", newCfg.Email.Enabled),
			logx.String("email.host", newCfg.Email.Host),
			logx.Int("email.port", newCfg.Email.Port),
			logx.Bool("email.auth_set", strings.TrimSpace(newCfg.Email.Username) != ""),
			logx.Bool("email.overdue_email", newCfg.Email.OverdueEmail),
		)
	}

	// Notify windows
	if oldCfg.Notify != newCfg.Notify {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.String("notify.interval", newCfg.Notify.Interval),
			logx.String("notify.reminder_window", newCfg.Notify.ReminderWindow),
			logx.String("notify.due_soon_lead", newCfg.Notify.DueSoonLead),
			logx.String("notify.due_soon_window", newCfg.Notify.DueSoonWindow),
			logx.String("notify.overdue_grace", newCfg.Notify.OverdueGrace),
		)
	}

	// Pprof (never log the token)
	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", newCfg.Pprof.Addr),
			logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""),
		)
	}

	// Scheduler
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.Int("scheduler.workers", newCfg.Scheduler.Workers),
			logx.String("scheduler.default_timeout", newCfg.Scheduler.DefaultTimeout),
		)
	}

	return changed, attrs
}
