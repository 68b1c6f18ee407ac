// Package ws is the live-update surface: one hub fans collected data out to
// every connected browser. Clients are read for keepalive pings and channel
// subscriptions; everything else flows server to client.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/web3-frozen/pool-dashboard/internal/metrics"
	"github.com/web3-frozen/pool-dashboard/internal/store"
)

const writeTimeout = 5 * time.Second

// Message is the uniform frame for every server-to-client push.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
}

type Hub struct {
	logger *slog.Logger
	origin string

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *slog.Logger, origin string) *Hub {
	return &Hub{
		logger:  logger,
		origin:  origin,
		clients: make(map[*client]struct{}),
	}
}

// Handler upgrades the request and serves the connection until the client
// goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &websocket.AcceptOptions{}
		if h.origin == "*" {
			opts.InsecureSkipVerify = true
		} else if h.origin != "" {
			opts.OriginPatterns = []string{h.origin}
		}
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			h.logger.Warn("ws accept failed", "error", err)
			return
		}

		c := &client{conn: conn}
		h.add(c)
		defer h.remove(c)

		h.readLoop(r.Context(), c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
	h.logger.Info("ws client connected", "clients", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.conn.Close(websocket.StatusNormalClosure, "")
	metrics.WSClients.Set(float64(n))
	h.logger.Info("ws client disconnected", "clients", n)
}

// readLoop consumes client frames: ping gets a pong, subscribe gets a
// confirmation, anything else is logged and dropped.
func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Debug("ws unparseable frame", "error", err)
			continue
		}

		switch frame.Type {
		case "ping":
			h.send(ctx, c, Message{Type: "pong", Timestamp: time.Now().UTC()})
		case "subscribe":
			// Echo the client's data payload back in the confirmation.
			h.send(ctx, c, Message{
				Type:      "subscription_confirmed",
				Data:      frame.Data,
				Timestamp: time.Now().UTC(),
			})
		default:
			h.logger.Debug("ws unknown frame type", "type", frame.Type)
		}
	}
}

func (h *Hub) send(ctx context.Context, c *client, msg Message) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws marshal", "error", err)
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		return false
	}
	metrics.WSMessagesSent.Inc()
	return true
}

// broadcast writes the message to every client, pruning the ones whose write
// fails.
func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !h.send(context.Background(), c, msg) {
			h.remove(c)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// --- collector/alert engine facing API ---

func (h *Hub) BroadcastPoolUpdate(pool store.Pool, stat store.PoolStatistic) {
	h.broadcast(Message{
		Type: "pool_update",
		Data: map[string]any{
			"pool_id":   pool.ID,
			"pool_name": pool.Name,
			"stats":     stat,
		},
		Timestamp: time.Now().UTC(),
	})
}

func (h *Hub) BroadcastNetworkUpdate(ns store.NetworkStats) {
	h.broadcast(Message{Type: "network_update", Data: ns, Timestamp: time.Now().UTC()})
}

func (h *Hub) BroadcastNewBlock(b store.Block) {
	h.broadcast(Message{Type: "new_block", Data: b, Timestamp: time.Now().UTC()})
}

func (h *Hub) BroadcastAlert(hist store.AlertHistory, sub store.SubscriptionWithPool) {
	h.broadcast(Message{
		Type: "alert",
		Data: map[string]any{
			"alert_type": sub.AlertType,
			"pool_id":    hist.PoolID,
			"message":    hist.Message,
			"value":      hist.TriggerValue,
		},
		Timestamp: time.Now().UTC(),
	})
}
