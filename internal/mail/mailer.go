// Package mail is the outbound email channel: MIME composition with
// emersion/go-message and SMTP submission with emersion/go-smtp.
// Sends are rate-limited and bounded by a per-send timeout so a stuck
// SMTP session can never hang a scan.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"golang.org/x/time/rate"

	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

var ErrDisabled = errors.New("email channel disabled")

// Config configures the SMTP submission channel.
type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// Timeout bounds one submission end to end. Defaults to 15s.
	Timeout time.Duration

	// RatePerSec caps outbound sends. Defaults to 1.
	RatePerSec int
}

func (c Config) normalized() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.Port <= 0 {
		c.Port = 587
	}
	return c
}

// Mailer sends notification and alert email. Safe for concurrent use;
// Apply swaps the config at runtime.
type Mailer struct {
	log logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) *Mailer {
	m := &Mailer{log: log.With(logx.String("comp", "mail"))}
	m.Apply(cfg)
	return m
}

// Apply swaps the channel config. In-flight sends finish under the old
// config.
func (m *Mailer) Apply(cfg Config) {
	cfg = cfg.normalized()
	m.mu.Lock()
	m.cfg = cfg
	m.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	m.mu.Unlock()
}

func (m *Mailer) snapshot() (Config, *rate.Limiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.limiter
}

// SendItem renders the per-kind template for the item and submits it.
func (m *Mailer) SendItem(ctx context.Context, to, kind string, it storage.Item) error {
	subject, html, text, err := renderItem(kind, it)
	if err != nil {
		return fmt.Errorf("rendering %s email: %w", kind, err)
	}
	return m.Send(ctx, to, subject, html, text)
}

// SendAlert delivers an operator alert as plain text. It satisfies the
// logging service's alert sink contract.
func (m *Mailer) SendAlert(ctx context.Context, to, subject, body string) error {
	return m.Send(ctx, to, subject, "", body)
}

// Send composes a message (multipart/alternative when both bodies are
// given) and submits it. One best-effort attempt, no retry.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	cfg, limiter := m.snapshot()
	if !cfg.Enabled {
		return ErrDisabled
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("empty recipient address")
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	msg, err := compose(cfg.From, to, subject, htmlBody, textBody)
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	started := time.Now()
	err = m.submit(ctx, cfg, to, msg)
	if err != nil {
		return err
	}
	m.log.Debug("email sent", logx.String("to", to), logx.String("subject", subject), logx.Duration("took", time.Since(started)))
	return nil
}

// submit runs the blocking SMTP session in a goroutine so the deadline
// holds even if the server stops responding mid-session.
func (m *Mailer) submit(ctx context.Context, cfg Config, to string, msg []byte) error {
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)

	var auth sasl.Client
	if cfg.Username != "" {
		auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, cfg.From, []string{to}, bytes.NewReader(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp submit to %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		// The session goroutine is abandoned; the OS will reap the
		// socket when the library times out on its own.
		return fmt.Errorf("smtp submit to %s: %w", addr, ctx.Err())
	}
}

func compose(from, to, subject, htmlBody, textBody string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if textBody != "" || htmlBody == "" {
		var th mail.InlineHeader
		th.Set("Content-Type", "text/plain; charset=utf-8")
		pw, err := iw.CreatePart(th)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(pw, textBody); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}
	if htmlBody != "" {
		var hh mail.InlineHeader
		hh.Set("Content-Type", "text/html; charset=utf-8")
		pw, err := iw.CreatePart(hh)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(pw, htmlBody); err != nil {
			return nil, err
		}
		if err := pw.Close(); err != nil {
			return nil, err
		}
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
