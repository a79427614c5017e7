// Package httpd hosts the push channel and the notification read API:
// a gin server with a JWT-guarded websocket endpoint that feeds the
// connection registry, JWT-guarded notification endpoints, and an
// unauthenticated health probe.
package httpd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"notifyd/internal/notify"
	"notifyd/internal/scheduler"
	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

type Config struct {
	Addr      string
	JWTSecret string
}

type Server struct {
	cfg      Config
	log      logx.Logger
	registry *notify.Registry
	store    storage.NotificationStore
	sched    *scheduler.Service

	srv *http.Server
}

func New(cfg Config, registry *notify.Registry, store storage.NotificationStore, sched *scheduler.Service, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	s := &Server{
		cfg:      cfg,
		log:      log.With(logx.String("comp", "httpd")),
		registry: registry,
		store:    store,
		sched:    sched,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.handleHealth)

	auth := s.authMiddleware()
	router.GET("/ws", auth, s.handleWS)

	api := router.Group("/api", auth)
	{
		api.GET("/notifications", s.handleList)
		api.GET("/notifications/unread", s.handleUnread)
		api.PUT("/notifications/:id/read", s.handleMarkRead)
		api.PUT("/notifications/read-all", s.handleMarkAllRead)
		api.DELETE("/notifications/:id", s.handleDelete)
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", logx.String("addr", s.cfg.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":       "ok",
		"online_users": s.registry.Users(),
	}
	if s.sched != nil {
		snap := s.sched.Snapshot()
		resp["scheduler"] = gin.H{
			"enabled":   snap.Enabled,
			"schedules": len(snap.Schedules),
			"queue_len": snap.QueueLen,
		}
	}
	c.JSON(http.StatusOK, resp)
}
