package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The monitor binds to a local address and is token-protected when exposed
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// hub handles WebSocket connections and broadcasting
type hub struct {
	server     *Server
	clients    map[*client]bool
	clientsMu  sync.RWMutex
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	shutdown   chan struct{}
	closeOnce  sync.Once
}

// client represents a connected monitor
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
	ip   string

	mu     sync.Mutex
	closed bool
}

// trySend queues data without blocking. It reports false when the
// client's buffer is full or already closed.
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func newHub(s *Server) *hub {
	return &hub{
		server:     s,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		shutdown:   make(chan struct{}),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.clientsMu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			h.server.log.Debug("websocket client registered", "remote", c.ip, "clients", n)

		case c := <-h.unregister:
			h.remove(c)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.shutdown:
			h.clientsMu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				c.closeSend()
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

func (h *hub) remove(c *client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.closeSend()
		h.server.log.Debug("websocket client unregistered", "remote", c.ip, "clients", len(h.clients))
	}
}

func (h *hub) close() {
	h.closeOnce.Do(func() { close(h.shutdown) })
}

func (h *hub) clientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// publish queues message for broadcast without blocking. Input callbacks
// run on hook threads, so a full queue drops the message.
func (h *hub) publish(message Message) {
	select {
	case h.broadcast <- message:
	default:
		h.server.log.Debug("monitor broadcast queue full, message dropped", "type", string(message.Type))
	}
}

func (h *hub) broadcastMessage(message Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		h.server.log.Warn("failed to marshal broadcast message", "error", err)
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		if !c.trySend(jsonMsg) {
			// slow client
			c.closeSend()
			delete(h.clients, c)
		}
	}
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.server.log.Warn("failed to upgrade websocket connection", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		ip:   r.RemoteAddr,
	}

	if hello, err := json.Marshal(Message{Type: TypeHello, Payload: h.server.session.Snapshot()}); err == nil {
		c.trySend(hello)
	}

	select {
	case h.register <- c:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump reads client commands until the connection closes.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.server.log.Debug("websocket read error", "error", err)
			}
			return
		}

		c.handleMessage(message)
	}
}

// writePump writes queued messages and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *client) handleMessage(data []byte) {
	var msg struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(TypeError, ErrorPayload{Message: "invalid message format"})
		return
	}

	session := c.hub.server.session
	switch msg.Type {
	case TypeToggle:
		var payload TogglePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.reply(TypeError, ErrorPayload{Message: "invalid toggle payload"})
			return
		}
		c.hub.server.log.Info("input collection requested", "enabled", payload.Enabled, "remote", c.ip)
		session.SetInputCollection(payload.Enabled)

	case TypeFinish:
		c.hub.server.log.Info("finish requested", "remote", c.ip)
		session.Finish()

	default:
		c.reply(TypeError, ErrorPayload{Message: "unknown message type " + string(msg.Type)})
	}
}

// reply sends a message to this client only.
func (c *client) reply(t MessageType, payload any) {
	data, err := json.Marshal(Message{Type: t, Payload: payload})
	if err != nil {
		return
	}
	c.trySend(data)
}
