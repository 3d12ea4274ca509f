package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dilemma-game/internal/store"
)

type fakeBroadcaster struct {
	mu      sync.Mutex
	updates []map[string]interface{}
}

func (f *fakeBroadcaster) BroadcastRoomUpdate(data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := data.(map[string]interface{}); ok {
		f.updates = append(f.updates, m)
	}
}

func (f *fakeBroadcaster) snapshot() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, len(f.updates))
	copy(out, f.updates)
	return out
}

func (f *fakeBroadcaster) waitForCount(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(f.snapshot()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("saw %d updates within %v, want %d", len(f.snapshot()), timeout, n)
}

func TestRoomWatcherBroadcastsChanges(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	hub := &fakeBroadcaster{}
	w := NewRoomWatcher(mem, hub, logger)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	ctx := context.Background()
	if err := mem.Set(ctx, "rooms/r1", map[string]any{"name": "lobby"}); err != nil {
		t.Fatal(err)
	}
	hub.waitForCount(t, 1, time.Second)

	updates := hub.snapshot()
	if updates[0]["room_id"] != "r1" {
		t.Errorf("room_id = %v, want r1", updates[0]["room_id"])
	}
	if updates[0]["room"] == nil {
		t.Error("change update carries no room document")
	}

	if err := mem.Delete(ctx, "rooms/r1"); err != nil {
		t.Fatal(err)
	}
	hub.waitForCount(t, 2, time.Second)

	updates = hub.snapshot()
	if updates[1]["deleted"] != true {
		t.Errorf("deletion update = %v, want deleted flag", updates[1])
	}

	// Changes in other collections stay out of the room feed
	mem.Set(ctx, "games/g1", "unrelated")
	time.Sleep(50 * time.Millisecond)
	if got := len(hub.snapshot()); got != 2 {
		t.Errorf("unrelated change leaked into the room feed: %d updates", got)
	}
}

func TestRoomWatcherStopUnsubscribes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	hub := &fakeBroadcaster{}
	w := NewRoomWatcher(mem, hub, logger)

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if !w.IsRunning() {
		t.Error("watcher should report running after Start")
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if w.IsRunning() {
		t.Error("watcher should report stopped after Stop")
	}

	mem.Set(context.Background(), "rooms/r1", "doc")
	time.Sleep(50 * time.Millisecond)
	if got := len(hub.snapshot()); got != 0 {
		t.Errorf("stopped watcher still forwarded %d updates", got)
	}
}
