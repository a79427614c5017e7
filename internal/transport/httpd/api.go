package httpd

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"notifyd/internal/storage"
	logx "notifyd/pkg/logx"
)

// notificationJSON is the API wire shape, matching the outbound push
// event field naming.
type notificationJSON struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ItemID    *int64    `json:"itemId"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func toJSON(ns []storage.Notification) []notificationJSON {
	out := make([]notificationJSON, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationJSON{
			ID:        n.ID,
			Type:      n.Kind,
			Message:   n.Message,
			ItemID:    n.ItemID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleList(c *gin.Context) {
	uid := userID(c)
	ns, err := s.store.NotificationsByUser(c.Request.Context(), uid)
	if err != nil {
		s.fail(c, err)
		return
	}
	// Unread count is totaled separately; the list itself is capped.
	unread, err := s.store.CountUnread(c.Request.Context(), uid)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": toJSON(ns), "unreadCount": unread})
}

func (s *Server) handleUnread(c *gin.Context) {
	ns, err := s.store.UnreadByUser(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": toJSON(ns), "count": len(ns)})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	id := c.Param("id")
	err := s.store.MarkRead(c.Request.Context(), userID(c), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "read": true})
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	err := s.store.DeleteNotification(c.Request.Context(), userID(c), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	n, err := s.store.MarkAllRead(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (s *Server) fail(c *gin.Context, err error) {
	s.log.Error("request failed", logx.String("path", c.FullPath()), logx.Err(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
