// Package worker holds the background loops: idle-room reaping, the
// server-side heartbeat for connected players, and the room change
// watcher feeding the websocket hub.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/room"
)

// Reaper periodically removes idle waiting rooms
type Reaper struct {
	rooms   *room.Manager
	config  *config.RoomConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReaper creates a new room reaper
func NewReaper(rooms *room.Manager, cfg *config.RoomConfig, logger *slog.Logger) *Reaper {
	return &Reaper{
		rooms:  rooms,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background reap process
func (w *Reaper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("room reaper started", "interval", w.config.ReapInterval)

	go w.run(ctx)
	return nil
}

// Stop stops the background reap process
func (w *Reaper) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("room reaper stopped")
	return nil
}

// run is the main worker loop
func (w *Reaper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

func (w *Reaper) reap(ctx context.Context) {
	start := time.Now()
	removed, err := w.rooms.ReapIdle(ctx)
	if err != nil {
		w.logger.Error("reap cycle failed", "error", err)
		return
	}
	if removed > 0 {
		w.logger.Info("reap cycle completed",
			"removed", removed,
			"duration", time.Since(start),
		)
	}
}

// IsRunning returns whether the worker is currently running
func (w *Reaper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single reap cycle (useful for manual triggers)
func (w *Reaper) RunOnce(ctx context.Context) {
	w.reap(ctx)
}
