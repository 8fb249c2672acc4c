package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trader-core/pkg/core"
)

// defaultEventBufferSize bounds the hub's broadcast queue and each client's
// outbound queue when config.DashboardConfig.EventBufferSize is unset. Sized
// for a multi-ticker, multi-strategy runtime where fills/orders/positions
// arrive per-ticker rather than the single-market event stream this pump
// shape was originally built for.
const defaultEventBufferSize = 256

// Hub manages WebSocket clients and fans out engine events to them, filtered
// per client by the ticker each client subscribed to.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan tickerEvent
	bufferSize int
	mu         sync.RWMutex
	logger     *slog.Logger
}

// tickerEvent pairs a marshaled DashboardEvent with the ticker it concerns,
// so the hub can filter fan-out without re-unmarshaling per client.
// Ticker is empty for account-wide events (snapshot, kill-switch).
type tickerEvent struct {
	ticker string
	data   []byte
}

// Client represents a connected WebSocket client. ticker, if non-empty,
// restricts the client to events on that ticker plus account-wide ones.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	ticker string
}

// NewHub creates a new WebSocket hub. bufferSize <= 0 falls back to
// defaultEventBufferSize.
func NewHub(logger *slog.Logger, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultEventBufferSize
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan tickerEvent, bufferSize),
		bufferSize: bufferSize,
		logger:     logger.With("component", "ws-hub"),
	}
}

// Run starts the hub's main loop (should be called in a goroutine)
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected", "count", len(h.clients), "ticker_filter", client.ticker)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "count", len(h.clients))

		case evt := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(evt.ticker) {
					continue
				}
				select {
				case client.send <- evt.data:
				default:
					// Client can't keep up, close it
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent sends an event to every client subscribed to its ticker
// (or to every client, for account-wide events with no ticker).
func (h *Hub) BroadcastEvent(evt DashboardEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}

	select {
	case h.broadcast <- tickerEvent{ticker: evt.Ticker, data: data}:
	default:
		h.logger.Warn("broadcast channel full, dropping event", "type", evt.Type, "ticker", evt.Ticker)
	}
}

// BroadcastSnapshot sends an account-wide snapshot to every connected client.
func (h *Hub) BroadcastSnapshot(snapshot DashboardSnapshot) {
	evt := DashboardEvent{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Data:      snapshot,
	}
	h.BroadcastEvent(evt)
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize bounds inbound frames; the dashboard is read-only so
	// this only guards against a misbehaving client, not payload size.
	maxMessageSize = 512 * 1024
)

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}
		// Dashboard is read-only, ignore any client messages
	}
}

// wants reports whether this client should receive an event for
// eventTicker. A client with no filter wants everything; an account-wide
// event (eventTicker == "") reaches every client regardless of filter.
func (c *Client) wants(eventTicker string) bool {
	return c.ticker == "" || eventTicker == "" || c.ticker == eventTicker
}

// NewClient creates a new WebSocket client and starts its pumps. tickerFilter,
// if non-empty (e.g. a ticker's canonical core.Ticker.String() form), limits
// the client to that ticker's events plus account-wide ones.
func NewClient(hub *Hub, conn *websocket.Conn, tickerFilter string) *Client {
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.bufferSize),
		ticker: tickerFilter,
	}

	client.hub.register <- client

	// Start pumps
	go client.writePump()
	go client.readPump()

	return client
}

// parseTickerFilter normalizes a raw "?ticker=" query value to the canonical
// form BroadcastEvent compares against, or "" if none was supplied.
func parseTickerFilter(raw string) string {
	if raw == "" {
		return ""
	}
	return core.ParseTicker(raw).String()
}
