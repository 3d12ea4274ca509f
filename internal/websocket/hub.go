// Package websocket pushes session and lobby events to connected clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dilemma-game/internal/session"
)

// Message types
const (
	MessageTypeSessionEvent = "session_event"
	MessageTypeRoomUpdate   = "room_update"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeError        = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	GameID    string      `json:"game_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and routes messages to them.
// A player can hold several connections (multiple tabs); events addressed
// to a player go to all of them.
type Hub struct {
	// Connections per player ID
	players map[string]map[*Client]bool

	// Connections subscribed per game ID
	games map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	gameID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		players:     make(map[string]map[*Client]bool),
		games:       make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			if _, ok := h.players[client.playerID]; !ok {
				h.players[client.playerID] = make(map[*Client]bool)
			}
			h.players[client.playerID][client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id, "player_id", client.playerID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				if conns, ok := h.players[client.playerID]; ok {
					delete(conns, client)
					if len(conns) == 0 {
						delete(h.players, client.playerID)
					}
				}
				for gameID, clients := range h.games {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.games, gameID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.games[req.gameID]; !ok {
				h.games[req.gameID] = make(map[*Client]bool)
			}
			h.games[req.gameID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "game_id", req.gameID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.games[req.gameID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.games, req.gameID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "game_id", req.gameID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all game subscribers, or to everyone
// when the message carries no game id
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	if message.GameID != "" {
		if clients, ok := h.games[message.GameID]; ok {
			for client := range clients {
				h.trySend(client, data)
			}
		}
	} else {
		for client := range h.allClients {
			h.trySend(client, data)
		}
	}
}

func (h *Hub) trySend(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Client's buffer is full, skip
		h.logger.Warn("client buffer full, skipping", "client_id", client.id)
	}
}

// Notify delivers a session event to every connection the player holds.
// Implements the session notifier contract.
func (h *Hub) Notify(playerID string, event session.Event) {
	message := &Message{
		Type:      MessageTypeSessionEvent,
		GameID:    event.GameID,
		Data:      event,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal session event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.players[playerID] {
		h.trySend(client, data)
	}
}

// BroadcastRoomUpdate tells every connected client that the room listing
// changed
func (h *Hub) BroadcastRoomUpdate(data interface{}) {
	message := &Message{
		Type:      MessageTypeRoomUpdate,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a game subscription
func (h *Hub) Subscribe(client *Client, gameID string) {
	h.subscribe <- &subscriptionRequest{client: client, gameID: gameID}
}

// Unsubscribe removes a client from a game subscription
func (h *Hub) Unsubscribe(client *Client, gameID string) {
	h.unsubscribe <- &subscriptionRequest{client: client, gameID: gameID}
}

// ConnectedPlayers returns the ids of players with at least one open
// connection. Feeds the server-side heartbeat.
func (h *Hub) ConnectedPlayers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.players))
	for id := range h.players {
		ids = append(ids, id)
	}
	return ids
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
