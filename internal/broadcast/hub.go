package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"szenai/internal/constants"
	"szenai/internal/metrics"
)

const (
	defaultClientBuffer = 64
	writeTimeout        = 10 * time.Second
)

var clientIDCounter atomic.Uint64

type client struct {
	id   uint64
	send chan []byte
}

// Hub fans events out to connected websocket clients. A client whose buffer
// is full is dropped instead of blocking the publisher.
type Hub struct {
	mu             sync.Mutex
	clients        map[*client]struct{}
	closed         bool
	done           chan struct{}
	bufferSize     int
	originPatterns []string
	logger         *logrus.Logger
	metrics        *metrics.Metrics
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithOriginPatterns allows cross-origin websocket handshakes from the given host patterns.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.originPatterns = patterns }
}

// WithClientBuffer sets how many undelivered events a client may queue.
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func NewHub(logger *logrus.Logger, m *metrics.Metrics, opts ...HubOption) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	h := &Hub{
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
		bufferSize: defaultClientBuffer,
		logger:     logger,
		metrics:    m,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and streams events until the peer leaves,
// the client falls behind, or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Connections outlive the server's read and write timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.WithError(err).Debug("websocket handshake failed")
		return
	}

	c, ok := h.register()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)

	// Inbound frames are ignored; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(context.Background())

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusPolicyViolation, "client too slow")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.WithError(err).WithField("client_id", c.id).Debug("websocket write failed")
				return
			}
		}
	}
}

func (h *Hub) register() (*client, bool) {
	c := &client{
		id:   clientIDCounter.Add(1),
		send: make(chan []byte, h.bufferSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetWebsocketClients(n)
	h.logger.WithFields(logrus.Fields{
		"client_id":     c.id,
		"total_clients": n,
	}).Info("websocket client connected")
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetWebsocketClients(n)
	h.logger.WithFields(logrus.Fields{
		"client_id":     c.id,
		"total_clients": n,
	}).Info("websocket client disconnected")
}

// Publish queues event for every connected client.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	h.mu.Lock()
	delivered, dropped := 0, 0
	for c := range h.clients {
		select {
		case c.send <- data:
			delivered++
		default:
			delete(h.clients, c)
			close(c.send)
			dropped++
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		h.metrics.SetWebsocketClients(n)
		h.logger.WithFields(logrus.Fields{
			constants.LogFieldEvent: event.Type,
			constants.LogFieldCount: dropped,
		}).Warn("Dropped slow websocket clients")
	}
	h.logger.WithFields(logrus.Fields{
		constants.LogFieldEvent: event.Type,
		constants.LogFieldCount: delivered,
	}).Debug("Broadcast event")
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}
