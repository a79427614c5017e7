package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	p := writeTemp(t, "config.json", `{
  "logging": {"level": "debug", "console": true},
  "storage": {"path": "/tmp/notifyd.db", "busy_timeout": "5s"},
  "http": {"enabled": true, "addr": ":8090", "jwt_secret": "s3cr3t"},
  "notify": {"interval": "30s", "reminder_window": "5m"},
  "scheduler": {"enabled": true, "workers": 2}
}`)

	cfg, err := NewManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Storage.Path != "/tmp/notifyd.db" {
		t.Fatalf("storage.path = %q", cfg.Storage.Path)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Addr != ":8090" || cfg.HTTP.JWTSecret != "s3cr3t" {
		t.Fatalf("http = %+v", cfg.HTTP)
	}
	if cfg.Notify.Interval != "30s" {
		t.Fatalf("notify.interval = %q", cfg.Notify.Interval)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Workers != 2 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	p := writeTemp(t, "config.yaml", `
logging:
  level: info
storage:
  path: data/notifyd.db
email:
  enabled: true
  host: smtp.example.com
  port: 587
  from: bot@example.com
  overdue_email: true
notify:
  due_soon_lead: 1h
  due_soon_window: 5m
scheduler:
  enabled: true
`)

	cfg, err := NewManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Path != "data/notifyd.db" {
		t.Fatalf("storage.path = %q", cfg.Storage.Path)
	}
	if !cfg.Email.Enabled || cfg.Email.Host != "smtp.example.com" || cfg.Email.Port != 587 {
		t.Fatalf("email = %+v", cfg.Email)
	}
	if !cfg.Email.OverdueEmail {
		t.Fatal("overdue_email should be true")
	}
	if cfg.Notify.DueSoonLead != "1h" || cfg.Notify.DueSoonWindow != "5m" {
		t.Fatalf("notify = %+v", cfg.Notify)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	p := writeTemp(t, "config.json", `{"storage": {"path": "x.db", "pathh": "typo"}}`)
	if _, err := NewManager(p).Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}

	p = writeTemp(t, "config.yaml", "storag:\n  path: x.db\n")
	if _, err := NewManager(p).Parse(); err == nil {
		t.Fatal("expected unknown-section error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	p := writeTemp(t, "config.json", `{"storage": {"path": "x.db"}} {"extra": 1}`)
	if _, err := NewManager(p).Parse(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestLoadCommitGet(t *testing.T) {
	t.Parallel()
	p := writeTemp(t, "config.json", `{"storage": {"path": "x.db"}}`)
	m := NewManager(p)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: d=%v err=%v", d, err)
	}
	if d, err := ParseDurationField("x", "90s"); err != nil || d != 90*time.Second {
		t.Fatalf("90s: d=%v err=%v", d, err)
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected negative-duration error")
	}
	if d, err := ParseDurationOrDefault("x", "", 15*time.Second); err != nil || d != 15*time.Second {
		t.Fatalf("default: d=%v err=%v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "3s", 15*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("explicit: d=%v err=%v", d, err)
	}
}

func TestSummarizeChangeMasksSecrets(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{}
	newCfg := &Config{
		HTTP:  HTTPConfig{Enabled: true, Addr: ":8090", JWTSecret: "hunter2-jwt"},
		Email: EmailConfig{Enabled: true, Host: "smtp.example.com", Username: "bot", Password: "hunter2-smtp"},
	}

	changed, attrs := SummarizeChange(oldCfg, newCfg)
	joined := strings.Join(changed, ",")
	if !strings.Contains(joined, "http") || !strings.Contains(joined, "email") {
		t.Fatalf("changed = %v", changed)
	}

	// Render the attrs and make sure neither secret appears anywhere.
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	ev := zl.Info()
	for _, f := range attrs {
		f(ev)
	}
	ev.Send()
	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("secret leaked in log attrs: %s", out)
	}
	if !strings.Contains(out, `"http.jwt_secret_set":true`) {
		t.Fatalf("expected jwt_secret_set flag in attrs: %s", out)
	}
	if !strings.Contains(out, `"email.auth_set":true`) {
		t.Fatalf("expected auth_set flag in attrs: %s", out)
	}
}

func TestSummarizeChangeNoChange(t *testing.T) {
	t.Parallel()
	cfg := &Config{Storage: StorageConfig{Path: "x.db"}}
	changed, _ := SummarizeChange(cfg, cfg)
	if len(changed) != 0 {
		t.Fatalf("changed = %v, want none", changed)
	}
}
