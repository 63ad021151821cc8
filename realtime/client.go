package realtime

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kevinaaaquil/writeups/auth"
	"github.com/kevinaaaquil/writeups/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var clientIDCounter atomic.Uint64

// Client is one socket connection, owned by the principal that opened it.
type Client struct {
	id        uint64
	hub       *Hub
	conn      *websocket.Conn
	send      chan Message
	principal auth.Principal
}

func NewClient(hub *Hub, conn *websocket.Conn, p auth.Principal) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		send:      make(chan Message, 64),
		principal: p,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.WithComponent("realtime").Warn().Err(err).Msg("unexpected socket close")
			}
			return
		}
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Authenticator resolves the principal for a handshake request. A non-nil
// error rejects the connection before it is upgraded.
type Authenticator func(r *http.Request) (auth.Principal, error)

// Reject writes the HTTP response for a refused handshake.
type Reject func(w http.ResponseWriter, r *http.Request, err error)

// Handler upgrades authenticated requests and registers them with the hub.
func Handler(hub *Hub, authenticate Authenticator, reject Reject, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := authenticate(r)
		if err != nil {
			reject(w, r, err)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			logging.WithComponent("realtime").Debug().Err(err).Msg("socket upgrade failed")
			return
		}
		c := NewClient(hub, conn, p)
		if !hub.register(c) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	}
}

// originChecker allows any origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}
