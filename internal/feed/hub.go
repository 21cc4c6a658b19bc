// Package feed fans market data out to websocket subscribers: a trade print
// for every fill crossing the gateway, and periodic L2 snapshots per symbol.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"skoll/internal/common"
)

// Event is the envelope every subscriber receives.
type Event struct {
	Type      string `json:"type"` // "trade" or "l2"
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"ts"`
	Data      any    `json:"data"`
}

// TradeEvent is the payload of a "trade" event.
type TradeEvent struct {
	MakerID uint64 `json:"maker_id"`
	TakerID uint64 `json:"taker_id"`
	Price   uint64 `json:"price"`
	Qty     uint64 `json:"qty"`
}

// SnapshotEvent is the payload of an "l2" event.
type SnapshotEvent struct {
	Bids []common.Level `json:"bids"`
	Asks []common.Level `json:"asks"`
}

// Client represents a connected websocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages websocket clients and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the hub's register/broadcast loop until the context is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Info().Int("subscribers", h.subscriberCount()).Msg("feed client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Info().Int("subscribers", h.subscriberCount()).Msg("feed client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Subscriber can't keep up; drop it.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// PublishTrade broadcasts a trade print to all subscribers.
func (h *Hub) PublishTrade(symbol string, fill common.Fill) {
	h.publish(Event{
		Type:      "trade",
		Symbol:    symbol,
		Timestamp: time.Now().UnixNano(),
		Data: TradeEvent{
			MakerID: fill.MakerID,
			TakerID: fill.TakerID,
			Price:   fill.Price,
			Qty:     fill.Qty,
		},
	})
}

// PublishSnapshot broadcasts an L2 snapshot to all subscribers.
func (h *Hub) PublishSnapshot(symbol string, bids, asks []common.Level) {
	h.publish(Event{
		Type:      "l2",
		Symbol:    symbol,
		Timestamp: time.Now().UnixNano(),
		Data:      SnapshotEvent{Bids: bids, Asks: asks},
	})
}

func (h *Hub) publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal feed event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn().Msg("feed broadcast channel full, dropping event")
	}
}

// HandleWS upgrades an HTTP request to a websocket subscription.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writeLoop()
	go client.readLoop()
}

func (c *Client) writeLoop() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// readLoop discards inbound frames; the feed is one-way. It exists to
// notice the peer going away.
func (c *Client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) subscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
