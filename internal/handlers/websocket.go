package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mossy-p/signaling-relay/internal/middleware"
	"github.com/mossy-p/signaling-relay/internal/relay"
	"github.com/mossy-p/signaling-relay/internal/session"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// SignalingOptions tunes client sessions and their connections.
type SignalingOptions struct {
	OutboxSize     int
	MaxMessageSize int64
	// PingPeriod enables keepalive pings; a peer that does not answer within
	// 10/9 of the period is disconnected. Zero disables keepalive.
	PingPeriod time.Duration
}

// HandleSignaling upgrades the request to a websocket and runs a client
// session in the requested room until the connection ends. It expects the
// Identity middleware to have run.
func HandleSignaling(reg *relay.Registry, opts SignalingOptions, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("signaling")
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		if roomID == "" {
			c.String(http.StatusBadRequest, "roomId is required")
			return
		}
		id, ok := middleware.GetIdentity(c)
		if !ok {
			c.String(http.StatusBadRequest, "Invalid user id")
			return
		}

		// Upgrade HTTP connection to WebSocket
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("failed to upgrade connection", zap.Error(err), zap.String("room", roomID))
			return
		}

		conn := newWSConn(ws, opts, log.With(zap.String("room", roomID), zap.String("user_id", id.UserID)))
		s := session.New(reg.GetOrCreate(roomID), conn, id.UserID, id.DisplayName, log,
			session.WithOutboxSize(opts.OutboxSize))
		_ = s.Run(c.Request.Context())
	}
}

// wsConn adapts a gorilla websocket to session.Conn. Only binary frames carry
// envelopes; other data frames are skipped.
type wsConn struct {
	conn *websocket.Conn
	log  *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(ws *websocket.Conn, opts SignalingOptions, log *zap.Logger) *wsConn {
	c := &wsConn{conn: ws, log: log, done: make(chan struct{})}
	if opts.MaxMessageSize > 0 {
		ws.SetReadLimit(opts.MaxMessageSize)
	}
	if opts.PingPeriod > 0 {
		c.keepalive(opts.PingPeriod)
	}
	return c
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, session.ErrClosed
			}
			return nil, err
		}
		if typ != websocket.BinaryMessage {
			c.log.Warn("ignoring non-binary frame", zap.Int("type", typ), zap.Int("size", len(data)))
			continue
		}
		return data, nil
	}
}

func (c *wsConn) WriteFrame(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// keepalive pings the peer every period and extends the read deadline on
// each pong. WriteControl is safe to call concurrently with WriteMessage.
func (c *wsConn) keepalive(period time.Duration) {
	pongWait := period * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					c.log.Debug("ping failed", zap.Error(err))
					return
				}
			}
		}
	}()
}
