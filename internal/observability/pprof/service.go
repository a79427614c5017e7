// Package pprof runs the optional debug profiling endpoint.
//
// The listener defaults to loopback. Binding anywhere else requires a
// token or an explicit insecure opt-in, so a config typo cannot expose
// profiles to the network.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"
	"sync"
	"time"

	logx "notifyd/pkg/logx"
)

type Config struct {
	Enabled       bool
	Addr          string
	Prefix        string
	Token         string
	AllowInsecure bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MutexProfileFraction int
	BlockProfileRate     int
}

func (c Config) normalized() Config {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		c.Addr = "127.0.0.1:6060"
	}
	c.Prefix = normalizePrefix(c.Prefix)
	c.Token = strings.TrimSpace(c.Token)
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	return c
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.normalized(), log: log.With(logx.String("comp", "pprof"))}
}

// Reconfigure applies cfg and starts/stops/restarts the listener as
// needed. Safe to call during hot-reload.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) {
	cfg = cfg.normalized()
	applyRuntimeRates(cfg)

	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		if running {
			s.Stop(ctx)
		}
	case !running:
		s.start()
	case needsRestart(prev, cfg):
		s.Stop(ctx)
		s.start()
	}
}

func needsRestart(a, b Config) bool {
	return a.Addr != b.Addr ||
		a.Prefix != b.Prefix ||
		a.Token != b.Token ||
		a.AllowInsecure != b.AllowInsecure ||
		a.ReadTimeout != b.ReadTimeout ||
		a.WriteTimeout != b.WriteTimeout ||
		a.IdleTimeout != b.IdleTimeout
}

func applyRuntimeRates(cfg Config) {
	if cfg.MutexProfileFraction >= 0 {
		runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
	}
	if cfg.BlockProfileRate >= 0 {
		runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	}
}

// Start brings the listener up if the config enables it. Idempotent.
func (s *Service) Start() {
	s.mu.Lock()
	cfg := s.cfg
	running := s.srv != nil
	s.mu.Unlock()

	applyRuntimeRates(cfg)
	if !cfg.Enabled || running {
		return
	}
	s.start()
}

func (s *Service) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return
	}
	cfg := s.cfg

	if !cfg.AllowInsecure && cfg.Token == "" && !isLoopbackAddr(cfg.Addr) {
		s.log.Error("refusing to start: non-loopback addr requires token or allow_insecure", logx.String("addr", cfg.Addr))
		return
	}
	if cfg.AllowInsecure && cfg.Token == "" && !isLoopbackAddr(cfg.Addr) {
		s.log.Warn("running without token on non-loopback addr", logx.String("addr", cfg.Addr))
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Error("listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return
	}

	srv := &http.Server{
		Handler:      s.buildMux(cfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	s.ln = ln
	s.srv = srv

	addr := ln.Addr().String()
	s.log.Info("started", logx.String("addr", addr), logx.String("prefix", cfg.Prefix), logx.Bool("token_set", cfg.Token != ""), logx.String("hint", fmt.Sprintf("http://%s%s", addr, cfg.Prefix)))

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("server error", logx.String("addr", addr), logx.Err(err))
		}
	}()
}

func (s *Service) buildMux(cfg Config) *http.ServeMux {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(cfg.Token, h) }

	mux.HandleFunc("/healthz", wrap(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	base := strings.TrimSuffix(cfg.Prefix, "/")
	mux.HandleFunc(cfg.Prefix, wrap(indexAt(cfg.Prefix)))
	mux.HandleFunc(base+"/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc(base+"/profile", wrap(hpprof.Profile))
	mux.HandleFunc(base+"/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc(base+"/trace", wrap(hpprof.Trace))
	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, cfg.Prefix, http.StatusPermanentRedirect)
	})
	return mux
}

// Stop shuts the listener down gracefully within ctx's deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("shutdown error", logx.Err(err))
		_ = srv.Close()
	}
	if ln != nil {
		_ = ln.Close()
	}
	s.log.Info("stopped")
}

// Addr reports the actual listen address if running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == token {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		if ah := r.Header.Get("Authorization"); ah != "" {
			if tok, ok := strings.CutPrefix(ah, "Bearer "); ok && strings.TrimSpace(tok) == token {
				h(w, r)
				return
			}
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func normalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "/debug/pprof/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// hpprof.Index assumes requests are rooted at /debug/pprof/; rewrite
// the path so custom prefixes work without forking net/http/pprof.
func indexAt(prefix string) http.HandlerFunc {
	canon := normalizePrefix(prefix)
	return func(w http.ResponseWriter, r *http.Request) {
		suffix := strings.TrimPrefix(r.URL.Path, canon)
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/debug/pprof/" + suffix
		hpprof.Index(w, r2)
	}
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
