package api

import (
	"errors"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/mujoco-bridge/pkg/log"
)

// StateTopic is the topic step summaries are published under to the hub.
const StateTopic = "state"

const defaultClientBuffer = 32

type stateClient struct {
	addr string
	send chan []byte
}

// StateHub fans step summaries out to every connected /ws/state client.
// A client that falls behind loses messages instead of slowing the others.
type StateHub struct {
	logger customlog.Logger
	buffer int

	mu      sync.Mutex
	clients map[*stateClient]struct{}
	closed  bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewStateHub creates a hub buffering up to buffer messages per client.
func NewStateHub(buffer int, logger customlog.Logger) *StateHub {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &StateHub{
		logger:  logger,
		buffer:  buffer,
		clients: make(map[*stateClient]struct{}),
	}
}

// PublishMessage queues data for every client. It never blocks.
func (h *StateHub) PublishMessage(topic string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *StateHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stats returns the number of queued and dropped client messages.
func (h *StateHub) Stats() (sent, dropped int64) {
	return h.sent.Load(), h.dropped.Load()
}

func (h *StateHub) register(addr string) *stateClient {
	c := &stateClient{addr: addr, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return c
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *StateHub) unregister(c *stateClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Close disconnects every client. Clients arriving later are turned away.
func (h *StateHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// RegisterStateWebSocket mounts the state stream at /ws/state.
func RegisterStateWebSocket(app fiber.Router, hub *StateHub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(hub.StateWebSocketHandler))
	hub.logger.Infof("Registered state WebSocket under /ws/state")
}

// StateWebSocketHandler streams every published step summary to conn as a
// text message until the client goes away. Client messages are ignored.
func (h *StateHub) StateWebSocketHandler(conn *websocket.Conn) {
	addr := conn.RemoteAddr().String()
	client := h.register(addr)
	defer h.unregister(client)
	h.logger.Infof("State WebSocket connected: %s", addr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logClose(h.logger, err)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Infof("State WebSocket disconnected: %s", addr)
			return
		case data, ok := <-client.send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warnf("State WS write to %s failed: %v", addr, err)
				return
			}
		}
	}
}

func logClose(logger customlog.Logger, err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		logger.Errorf("State WS read error: %v", err)
		return
	}
	if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
		logger.Infof("State WS connection closed: %v", err)
		return
	}
	logger.Debugf("State WS connection closed normally.")
}
