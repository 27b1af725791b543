// Package notify holds the delivery sinks fed by the notification workers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/pkg/logger"
	"github.com/okian/raceledger/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 32
)

// ErrHubClosed is returned when attaching to a closed hub.
var ErrHubClosed = errors.New("hub closed")

type client struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub pushes notifications to the websocket connections of their player.
// A slow client loses messages rather than stalling delivery.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
	logger  logger.Logger
}

// NewHub returns an empty hub.
func NewHub(l logger.Logger) *Hub {
	if l == nil {
		l = logger.Nop()
	}
	return &Hub{clients: map[string]map[*client]struct{}{}, logger: l.Named("ws_hub")}
}

// Name implements worker.Sink.
func (h *Hub) Name() string { return "websocket" }

// Deliver implements worker.Sink. Players without connections are a no-op.
func (h *Hub) Deliver(_ context.Context, n model.Notification) error { //nolint:gocritic // hugeParam
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.clients[n.PlayerID]
	if len(set) == 0 {
		return nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	for c := range set {
		select {
		case c.send <- b:
		default:
			metrics.RecordNotificationDropped("ws_client_slow")
		}
	}
	return nil
}

// Clients returns the number of attached connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Serve attaches conn to playerID and blocks until the peer goes away or
// ctx ends. The connection is closed on return.
func (h *Hub) Serve(ctx context.Context, playerID string, conn *websocket.Conn) error {
	c := &client{conn: conn, playerID: playerID, send: make(chan []byte, clientBuffer)}
	if err := h.attach(c); err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return err
	}
	h.logger.Debug(ctx, "client attached", logger.String("player_id", playerID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()

	readErr := make(chan error, 1)
	go func() { readErr <- h.readPump(c) }()

	var err error
	select {
	case <-ctx.Done():
	case err = <-readErr:
	}
	h.detach(c)
	<-done
	_ = conn.Close()
	h.logger.Debug(ctx, "client detached", logger.String("player_id", playerID))
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, set := range h.clients {
		for c := range set {
			c.close()
		}
		delete(h.clients, id)
	}
	metrics.UpdateWebsocketClients(0)
}

func (h *Hub) attach(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	set := h.clients[c.playerID]
	if set == nil {
		set = map[*client]struct{}{}
		h.clients[c.playerID] = set
	}
	set[c] = struct{}{}
	metrics.UpdateWebsocketClients(h.countLocked())
	return nil
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.playerID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			c.close()
		}
		if len(set) == 0 {
			delete(h.clients, c.playerID)
		}
	}
	metrics.UpdateWebsocketClients(h.countLocked())
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// readPump only services control frames; clients do not send commands.
func (h *Hub) readPump(c *client) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
