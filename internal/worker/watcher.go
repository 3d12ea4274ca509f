package worker

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/dilemma-game/internal/store"
)

// RoomBroadcaster pushes room-collection changes to connected clients
type RoomBroadcaster interface {
	BroadcastRoomUpdate(data interface{})
}

// RoomWatcher subscribes to the shared store's room collection and
// forwards every change to the hub, so lobby UIs see creates, joins,
// leaves and readiness flips as they happen rather than only on start.
type RoomWatcher struct {
	store   store.Store
	hub     RoomBroadcaster
	logger  *slog.Logger
	mu      sync.Mutex
	sub     *store.Subscription
	running bool
}

// NewRoomWatcher creates a room change watcher
func NewRoomWatcher(st store.Store, hub RoomBroadcaster, logger *slog.Logger) *RoomWatcher {
	return &RoomWatcher{
		store:  st,
		hub:    hub,
		logger: logger,
	}
}

// Start subscribes to room changes
func (w *RoomWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	sub, err := w.store.Listen("rooms", w.onChange)
	if err != nil {
		return err
	}
	w.sub = sub
	w.running = true

	w.logger.Info("room watcher started")
	return nil
}

// Stop releases the subscription
func (w *RoomWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}

	w.store.Unlisten(w.sub)
	w.sub = nil
	w.running = false

	w.logger.Info("room watcher stopped")
	return nil
}

// IsRunning returns whether the watcher is currently subscribed
func (w *RoomWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// onChange runs on the store's notification goroutine. The hub's
// broadcast enqueue is non-blocking, which keeps the listener callback
// contract.
func (w *RoomWatcher) onChange(path string, data json.RawMessage) {
	roomID := strings.TrimPrefix(path, "rooms/")
	update := map[string]interface{}{
		"room_id": roomID,
	}
	if data == nil {
		update["deleted"] = true
	} else {
		update["room"] = data
	}
	w.hub.BroadcastRoomUpdate(update)
}
