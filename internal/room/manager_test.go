package room

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/directory"
	"github.com/dilemma-game/internal/domain"
	"github.com/dilemma-game/internal/store"
)

type fakeGameCreator struct {
	mu      sync.Mutex
	created [][]string
	nextID  string
	err     error
}

func (f *fakeGameCreator) Create(ctx context.Context, playerIDs, playerNames []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, playerIDs)
	if f.nextID == "" {
		return "game-1", nil
	}
	return f.nextID, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeGameCreator, *time.Time) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	dir := directory.New(mem, &config.PresenceConfig{LivenessTTL: 30 * time.Second}, logger)
	games := &fakeGameCreator{}
	m := New(mem, dir, games, &config.RoomConfig{
		MaxPlayers:  2,
		IdleTimeout: 180 * time.Second,
	}, logger)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }
	return m, games, &current
}

func TestCreateAndGet(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, err := m.Create(ctx, "p1", "alice", "My Room")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	room, err := m.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if room.Name != "My Room" {
		t.Errorf("name = %q", room.Name)
	}
	if room.CreatorID != "p1" {
		t.Errorf("creator = %q", room.CreatorID)
	}
	if len(room.Players) != 1 {
		t.Errorf("players = %d, want 1", len(room.Players))
	}
	if room.Status != domain.RoomStatusWaiting {
		t.Errorf("status = %q, want waiting", room.Status)
	}
}

func TestCreateDefaultsName(t *testing.T) {
	m, _, _ := newTestManager(t)

	roomID, err := m.Create(context.Background(), "p1", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	room, _ := m.Get(context.Background(), roomID)
	if room.Name == "" {
		t.Error("empty name should be defaulted")
	}
}

func TestJoinValidation(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, _ := m.Create(ctx, "p1", "alice", "")

	if err := m.Join(ctx, roomID, "p1", "alice"); !errors.Is(err, domain.ErrAlreadyInRoom) {
		t.Errorf("re-join: got %v, want ErrAlreadyInRoom", err)
	}
	if err := m.Join(ctx, "missing", "p2", "bob"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("unknown room: got %v, want ErrRoomNotFound", err)
	}

	if err := m.Join(ctx, roomID, "p2", "bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := m.Join(ctx, roomID, "p3", "carol"); !errors.Is(err, domain.ErrRoomFull) {
		t.Errorf("full room: got %v, want ErrRoomFull", err)
	}
}

func TestConcurrentJoinOneWinner(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, _ := m.Create(ctx, "p1", "alice", "")

	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			errs[i] = m.Join(ctx, roomID, "joiner-"+id, "name-"+id)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrRoomFull) && !errors.Is(err, domain.ErrVersionConflict) {
			t.Errorf("unexpected join error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d joins succeeded into one free slot, want 1", succeeded)
	}

	room, _ := m.Get(ctx, roomID)
	if len(room.Players) != 2 {
		t.Errorf("room holds %d players, want 2", len(room.Players))
	}
}

func TestLeaveReassignsCreator(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, _ := m.Create(ctx, "p1", "alice", "")
	if err := m.Join(ctx, roomID, "p2", "bob"); err != nil {
		t.Fatal(err)
	}

	if err := m.Leave(ctx, roomID, "p1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	room, err := m.Get(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if room.CreatorID != "p2" {
		t.Errorf("creatorship should pass to p2, got %q", room.CreatorID)
	}
	if room.CreatorName != "bob" {
		t.Errorf("creator name = %q, want bob", room.CreatorName)
	}
}

func TestLeaveDeletesEmptyRoom(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, _ := m.Create(ctx, "p1", "alice", "")
	if err := m.Leave(ctx, roomID, "p1"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Get(ctx, roomID); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("emptied room should be gone, got %v", err)
	}
}

func TestLeaveNotInRoom(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	roomID, _ := m.Create(ctx, "p1", "alice", "")
	if err := m.Leave(ctx, roomID, "stranger"); !errors.Is(err, domain.ErrNotInRoom) {
		t.Errorf("got %v, want ErrNotInRoom", err)
	}
}

func TestStartChecks(t *testing.T) {
	m, games, _ := newTestManager(t)
	ctx := context.Background()

	roomID, _ := m.Create(ctx, "p1", "alice", "")

	if _, err := m.Start(ctx, roomID, "p1"); !errors.Is(err, domain.ErrNotEnoughPlayers) {
		t.Errorf("lone player: got %v, want ErrNotEnoughPlayers", err)
	}

	m.Join(ctx, roomID, "p2", "bob")

	if _, err := m.Start(ctx, roomID, "p2"); !errors.Is(err, domain.ErrNotCreator) {
		t.Errorf("non-creator: got %v, want ErrNotCreator", err)
	}
	if _, err := m.Start(ctx, roomID, "p1"); !errors.Is(err, domain.ErrPlayersNotReady) {
		t.Errorf("not ready: got %v, want ErrPlayersNotReady", err)
	}

	m.SetReady(ctx, roomID, "p1", true)
	m.SetReady(ctx, roomID, "p2", true)

	gameID, err := m.Start(ctx, roomID, "p1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gameID != "game-1" {
		t.Errorf("game id = %q", gameID)
	}
	if len(games.created) != 1 {
		t.Fatalf("game creator called %d times, want 1", len(games.created))
	}
	// Player order is deterministic regardless of map iteration
	if got := games.created[0]; got[0] != "p1" || got[1] != "p2" {
		t.Errorf("player order = %v, want [p1 p2]", got)
	}

	room, _ := m.Get(ctx, roomID)
	if room.Status != domain.RoomStatusPlaying {
		t.Errorf("status = %q, want playing", room.Status)
	}
	if room.GameID != gameID {
		t.Errorf("room game id = %q, want %q", room.GameID, gameID)
	}

	// A playing room no longer appears in the available listing
	listings, err := m.ListAvailable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 0 {
		t.Errorf("playing room still listed: %v", listings)
	}
}

// interceptStore lets a test slip a competing mutation between a
// version-guarded read and the write that follows it.
type interceptStore struct {
	store.Store
	mu     sync.Mutex
	armed  bool
	before func()
}

func (s *interceptStore) SetVersioned(ctx context.Context, path string, value any, expected int64) error {
	s.mu.Lock()
	fire := s.armed && strings.HasPrefix(path, "rooms/")
	if fire {
		s.armed = false
	}
	s.mu.Unlock()
	if fire {
		s.before()
	}
	return s.Store.SetVersioned(ctx, path, value, expected)
}

func TestStartRevalidatesAfterConcurrentLeave(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hook := &interceptStore{Store: store.NewMemory()}
	dir := directory.New(hook, &config.PresenceConfig{LivenessTTL: 30 * time.Second}, logger)
	games := &fakeGameCreator{}
	m := New(hook, dir, games, &config.RoomConfig{
		MaxPlayers:  2,
		IdleTimeout: 180 * time.Second,
	}, logger)
	ctx := context.Background()

	roomID, err := m.Create(ctx, "p1", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Join(ctx, roomID, "p2", "bob"); err != nil {
		t.Fatal(err)
	}
	m.SetReady(ctx, roomID, "p1", true)
	m.SetReady(ctx, roomID, "p2", true)

	// p2 leaves between Start's validating read and its write; the
	// version guard must force Start to re-validate and refuse.
	hook.mu.Lock()
	hook.before = func() {
		if err := m.Leave(ctx, roomID, "p2"); err != nil {
			t.Errorf("interleaved leave: %v", err)
		}
	}
	hook.armed = true
	hook.mu.Unlock()

	if _, err := m.Start(ctx, roomID, "p1"); !errors.Is(err, domain.ErrNotEnoughPlayers) {
		t.Fatalf("got %v, want ErrNotEnoughPlayers", err)
	}
	if len(games.created) != 0 {
		t.Error("a game was created for a room missing its opponent")
	}

	room, err := m.Get(ctx, roomID)
	if err != nil {
		t.Fatal(err)
	}
	if room.Status != domain.RoomStatusWaiting {
		t.Errorf("status = %q, want waiting", room.Status)
	}
	if len(room.Players) != 1 {
		t.Errorf("room holds %d players, want 1", len(room.Players))
	}
}

func TestStartRollsBackWhenGameCreationFails(t *testing.T) {
	m, games, _ := newTestManager(t)
	ctx := context.Background()

	roomID, _ := m.Create(ctx, "p1", "alice", "")
	if err := m.Join(ctx, roomID, "p2", "bob"); err != nil {
		t.Fatal(err)
	}
	m.SetReady(ctx, roomID, "p1", true)
	m.SetReady(ctx, roomID, "p2", true)

	games.err = errors.New("game backend down")
	if _, err := m.Start(ctx, roomID, "p1"); err == nil {
		t.Fatal("Start should fail when the game cannot be created")
	}

	room, _ := m.Get(ctx, roomID)
	if room.Status != domain.RoomStatusWaiting {
		t.Errorf("status = %q, want waiting after rollback", room.Status)
	}

	games.err = nil
	if _, err := m.Start(ctx, roomID, "p1"); err != nil {
		t.Errorf("restart after rollback: %v", err)
	}
}

func TestListAvailableOrdering(t *testing.T) {
	m, _, current := newTestManager(t)
	ctx := context.Background()

	first, _ := m.Create(ctx, "p1", "alice", "")
	*current = current.Add(time.Second)
	second, _ := m.Create(ctx, "p2", "bob", "")

	listings, err := m.ListAvailable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
	if listings[0].ID != first || listings[1].ID != second {
		t.Errorf("order = [%s %s], want oldest first", listings[0].ID, listings[1].ID)
	}
}

func TestReapIdle(t *testing.T) {
	m, _, current := newTestManager(t)
	ctx := context.Background()

	idle, _ := m.Create(ctx, "p1", "alice", "")
	paired, _ := m.Create(ctx, "p3", "carol", "")
	m.Join(ctx, paired, "p4", "dave")

	// Only rooms past the threshold get reaped
	*current = current.Add(181 * time.Second)
	fresh, _ := m.Create(ctx, "p2", "bob", "")

	removed, err := m.ReapIdle(ctx)
	if err != nil {
		t.Fatalf("ReapIdle: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d rooms, want 1", removed)
	}

	if _, err := m.Get(ctx, idle); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Error("idle room should be reaped")
	}
	if _, err := m.Get(ctx, fresh); err != nil {
		t.Errorf("fresh room should survive: %v", err)
	}
	if _, err := m.Get(ctx, paired); err != nil {
		t.Errorf("room with two players should survive: %v", err)
	}
}
