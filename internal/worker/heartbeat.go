package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dilemma-game/internal/config"
)

// ConnectionSource reports which players currently hold a live connection
type ConnectionSource interface {
	ConnectedPlayers() []string
}

// Beater refreshes a player's liveness timestamp
type Beater interface {
	Heartbeat(ctx context.Context, id string) error
}

// HeartbeatWorker beats on behalf of every connected player so that a
// player with an open socket never lapses out of the liveness TTL. Players
// without a connection are expected to beat over HTTP themselves.
type HeartbeatWorker struct {
	source  ConnectionSource
	beater  Beater
	config  *config.PresenceConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewHeartbeatWorker creates a new heartbeat worker
func NewHeartbeatWorker(source ConnectionSource, beater Beater, cfg *config.PresenceConfig, logger *slog.Logger) *HeartbeatWorker {
	return &HeartbeatWorker{
		source: source,
		beater: beater,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background heartbeat process
func (w *HeartbeatWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("heartbeat worker started", "interval", w.config.HeartbeatInterval)

	go w.run(ctx)
	return nil
}

// Stop stops the background heartbeat process
func (w *HeartbeatWorker) Stop() error {
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

	w.logger.Info("heartbeat worker stopped")
	return nil
}

// run is the main worker loop
func (w *HeartbeatWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.beatAll(ctx)
		}
	}
}

func (w *HeartbeatWorker) beatAll(ctx context.Context) {
	for _, id := range w.source.ConnectedPlayers() {
		if err := w.beater.Heartbeat(ctx, id); err != nil {
			w.logger.Warn("heartbeat failed", "player_id", id, "error", err)
		}
	}
}

// IsRunning returns whether the worker is currently running
func (w *HeartbeatWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
