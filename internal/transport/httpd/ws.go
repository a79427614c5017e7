package httpd

import (
	"context"
	"encoding/json"
	"time"

	cws "github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"notifyd/internal/notify"
	logx "notifyd/pkg/logx"
)

// wsConn adapts a coder/websocket connection to the push channel
// contract. Writes are serialized by the library; each send gets its
// own deadline so one dead client cannot stall a broadcast.
type wsConn struct {
	conn *cws.Conn
}

func (c *wsConn) Send(ctx context.Context, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.conn.Write(ctx, cws.MessageText, data)
}

// handleWS upgrades the request, registers the connection for the
// authenticated user, and blocks on the read loop until disconnect.
// Inbound frames are drained and discarded; the channel is push-only.
func (s *Server) handleWS(c *gin.Context) {
	uid := userID(c)

	conn, err := cws.Accept(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket accept failed", logx.Int64("user_id", uid), logx.Err(err))
		return
	}

	pc := &wsConn{conn: conn}
	s.registry.Register(uid, pc)
	defer s.registry.Unregister(uid, pc)
	defer conn.Close(cws.StatusNormalClosure, "")

	ctx := c.Request.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			s.log.Debug("websocket closed", logx.Int64("user_id", uid), logx.Err(err))
			return
		}
	}
}
