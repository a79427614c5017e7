package config

// Config is the full notifyd configuration.
//
// The file may be JSON or YAML; both are decoded strictly
// (unknown fields are rejected) after YAML is coerced to JSON.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	HTTP    HTTPConfig    `json:"http"`
	Email   EmailConfig   `json:"email,omitempty"`

	// Notify controls the trigger scanner windows and tick interval.
	Notify NotifyConfig `json:"notify"`

	// Scheduler controls execution of the periodic scan job.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Pprof exposes the optional debug profiling listener.
	Pprof PprofConfig `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level   string          `json:"level,omitempty"`
	Console bool            `json:"console,omitempty"`
	File    LogFileConfig   `json:"file,omitempty"`
	Alerts  LogAlertsConfig `json:"alerts,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LogAlertsConfig forwards high-severity log records to an operator
// email address through the email channel.
type LogAlertsConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	To         string `json:"to,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`

	// BusyTimeout is a Go duration string (e.g. "5s").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`

	// JWTSecret validates push-handshake and API bearer tokens.
	// Token issuance happens elsewhere; this daemon only verifies.
	JWTSecret string `json:"jwt_secret,omitempty"`
}

// EmailConfig configures the outbound SMTP channel.
//
// All durations are Go duration strings (e.g. "15s").
type EmailConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from,omitempty"`

	// Timeout bounds a single SMTP submission. Defaults to 15s.
	Timeout string `json:"timeout,omitempty"`

	// RatePerSec caps outbound sends. Defaults to 1.
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// OverdueEmail also emails overdue notifications (default: push-only,
	// to avoid overdue mail spam).
	OverdueEmail bool `json:"overdue_email,omitempty"`
}

// NotifyConfig holds the scan windows. Defaults match the scanner's
// contract: every window must be at least as wide as the tick interval.
type NotifyConfig struct {
	// Interval is the scheduler tick period. Defaults to "1m".
	Interval string `json:"interval,omitempty"`

	// ReminderWindow is the half-width of the reminder window around now.
	// Defaults to "5m" (window [now-5m, now+5m]).
	ReminderWindow string `json:"reminder_window,omitempty"`

	// DueSoonLead is the far edge of the due-soon window. Defaults to "1h".
	DueSoonLead string `json:"due_soon_lead,omitempty"`

	// DueSoonWindow is the width of the due-soon window, ending at
	// DueSoonLead. Defaults to "5m" (window [now+55m, now+60m]).
	DueSoonWindow string `json:"due_soon_window,omitempty"`

	// OverdueGrace is how far back the overdue window reaches. Defaults
	// to "5m" (window [now-5m, now]).
	OverdueGrace string `json:"overdue_grace,omitempty"`

	// Timezone is an IANA TZ used for log/schedule display, e.g. "UTC".
	Timezone string `json:"timezone,omitempty"`
}

// PprofConfig controls the debug profiling HTTP listener. It binds to
// loopback by default; a non-loopback addr requires a token or
// allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled,omitempty"`
	Addr          string `json:"addr,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// Timeouts are Go duration strings.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`

	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	Workers int  `json:"workers,omitempty"`

	// DefaultTimeout is a Go duration string bounding one scan.
	DefaultTimeout string `json:"default_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
}
