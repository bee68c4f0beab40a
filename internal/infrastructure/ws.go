package infra

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/coursegate/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Websocket upgrades requests and keeps the connections alive with pings
type Websocket struct {
	upgrader     websocket.Upgrader
	writeWait    time.Duration
	pongWait     time.Duration
	pingInterval time.Duration
}

// NewWebsocket create a Websocket with default timings
func NewWebsocket() *Websocket {
	pongWait := 30 * time.Second
	return &Websocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			HandshakeTimeout: 3 * time.Second,
		},
		writeWait:    10 * time.Second,
		pongWait:     pongWait,
		pingInterval: pongWait * 9 / 10,
	}
}

// WSConn server side of an upgraded connection, only written to by the handler
type WSConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	closed    chan struct{}
	closeOnce sync.Once
}

// Send write v as a JSON text message
func (wc *WSConn) Send(v interface{}) error {
	wc.conn.SetWriteDeadline(time.Now().Add(wc.writeWait))
	return wc.conn.WriteJSON(v)
}

// Closed is closed once the peer is gone
func (wc *WSConn) Closed() <-chan struct{} {
	return wc.closed
}

func (wc *WSConn) markClosed() {
	wc.closeOnce.Do(func() { close(wc.closed) })
}

// WithHeartbeat wrap handler function with heartbeat probe. Client messages
// other than control frames are discarded.
func (ws *Websocket) WithHeartbeat(handler func(c echo.Context, conn *WSConn) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := ws.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// upgrader has replied to the client already
			logging.ExtractLoggerFromContext(c.Request().Context()).Debug("websocket upgrade failed", zap.Error(err))
			return nil
		}

		wc := &WSConn{conn: conn, writeWait: ws.writeWait, closed: make(chan struct{})}
		go ws.readRoutine(wc)
		go ws.heartbeatRoutine(wc)
		defer func() {
			wc.markClosed()
			conn.Close()
		}()
		return handler(c, wc)
	}
}

func (ws *Websocket) readRoutine(wc *WSConn) {
	defer wc.markClosed()
	conn := wc.conn
	conn.SetReadDeadline(time.Now().Add(ws.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(ws.pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (ws *Websocket) heartbeatRoutine(wc *WSConn) {
	ticker := time.NewTicker(ws.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-wc.closed:
			return
		case <-ticker.C:
			if err := wc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ws.writeWait)); err != nil {
				wc.markClosed()
				return
			}
		}
	}
}
