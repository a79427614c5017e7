package pprof

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	logx "notifyd/pkg/logx"
)

func get(t *testing.T, url, bearer string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestStartStop(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	addr := s.Addr()
	if addr == "" {
		t.Fatal("server did not start")
	}
	if code := get(t, "http://"+addr+"/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
	if code := get(t, "http://"+addr+"/debug/pprof/", ""); code != http.StatusOK {
		t.Fatalf("index = %d", code)
	}

	s.Stop(context.Background())
	if s.Addr() != "" {
		t.Fatal("Addr should be empty after Stop")
	}
}

func TestTokenAuth(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0", Token: "sekrit"}, logx.Nop())
	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	addr := s.Addr()
	if addr == "" {
		t.Fatal("server did not start")
	}
	if code := get(t, "http://"+addr+"/healthz", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", code)
	}
	if code := get(t, "http://"+addr+"/healthz", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d, want 401", code)
	}
	if code := get(t, "http://"+addr+"/healthz", "sekrit"); code != http.StatusOK {
		t.Fatalf("bearer token = %d, want 200", code)
	}
	if code := get(t, "http://"+addr+"/healthz?token=sekrit", ""); code != http.StatusOK {
		t.Fatalf("query token = %d, want 200", code)
	}
}

func TestReconfigureDisables(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	s.Start()
	t.Cleanup(func() { s.Stop(context.Background()) })

	if s.Addr() == "" {
		t.Fatal("server did not start")
	}
	s.Reconfigure(context.Background(), Config{Enabled: false})
	if s.Addr() != "" {
		t.Fatal("server still running after disable")
	}
}
