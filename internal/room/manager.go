// Package room owns the lobby lifecycle: creation, joining, readiness
// negotiation, the transition into an active game, and idle-room reaping.
//
// There is no server arbitrating writes: both clients mutate the same room
// document. Every mutation therefore goes through a version-checked write;
// on conflict the mutation re-reads and re-validates, so two concurrent
// joins into one free slot resolve to exactly one winner.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/directory"
	"github.com/dilemma-game/internal/domain"
	"github.com/dilemma-game/internal/store"
)

const roomsPath = "rooms"

// casAttempts bounds the re-read loop on version conflicts
const casAttempts = 5

// GameCreator is the narrow slice of the game engine the room manager
// needs to activate a room
type GameCreator interface {
	Create(ctx context.Context, playerIDs, playerNames []string) (string, error)
}

// Manager provides room lifecycle operations
type Manager struct {
	store       store.Store
	directory   *directory.Directory
	games       GameCreator
	maxPlayers  int
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a room manager
func New(st store.Store, dir *directory.Directory, games GameCreator, cfg *config.RoomConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:       st,
		directory:   dir,
		games:       games,
		maxPlayers:  cfg.MaxPlayers,
		idleTimeout: cfg.IdleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

func roomPath(id string) string { return roomsPath + "/" + id }

// mutate applies fn to the room under optimistic concurrency. fn runs
// against a fresh read on every attempt so its validation always sees the
// latest state. A nil room is passed when the document is absent.
func (m *Manager) mutate(ctx context.Context, roomID string, fn func(*domain.Room) error) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		var room domain.Room
		version, found, err := m.store.GetVersioned(ctx, roomPath(roomID), &room)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrRoomNotFound
		}

		if err := fn(&room); err != nil {
			return err
		}

		err = m.store.SetVersioned(ctx, roomPath(roomID), &room, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return domain.ErrVersionConflict
}

// Create makes a new waiting room with the creator as its only player and
// marks the creator as in a room
func (m *Manager) Create(ctx context.Context, creatorID, creatorName, name string) (string, error) {
	roomID := uuid.NewString()
	if name == "" {
		name = "Room " + roomID[:8]
	}

	now := m.now()
	room := domain.Room{
		ID:          roomID,
		Name:        name,
		CreatorID:   creatorID,
		CreatorName: creatorName,
		Players: map[string]domain.RoomPlayer{
			creatorID: {ID: creatorID, Name: creatorName, JoinedAt: now},
		},
		MaxPlayers: m.maxPlayers,
		Status:     domain.RoomStatusWaiting,
		CreatedAt:  now,
	}

	if err := m.store.Set(ctx, roomPath(roomID), &room); err != nil {
		return "", fmt.Errorf("creating room: %w", err)
	}
	if err := m.directory.SetStatus(ctx, creatorID, domain.PlayerStatusInRoom); err != nil {
		m.logger.Warn("failed to mark creator in room", "player_id", creatorID, "error", err)
	}

	m.logger.Info("room created", "room_id", roomID, "creator_id", creatorID)
	return roomID, nil
}

// Get returns the room with the given id
func (m *Manager) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	found, err := m.store.Get(ctx, roomPath(roomID), &room)
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}
	if !found {
		return nil, domain.ErrRoomNotFound
	}
	return &room, nil
}

// ListAvailable returns waiting rooms with a free slot. Order is stable
// within one listing: oldest room first, id as tie-break.
func (m *Manager) ListAvailable(ctx context.Context) ([]domain.RoomListing, error) {
	docs, err := m.store.List(ctx, roomsPath)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}

	listings := make([]domain.RoomListing, 0, len(docs))
	for id, data := range docs {
		var room domain.Room
		if err := json.Unmarshal(data, &room); err != nil {
			m.logger.Warn("skipping malformed room document", "room_id", id, "error", err)
			continue
		}
		if !room.HasFreeSlot() {
			continue
		}
		listings = append(listings, domain.RoomListing{
			ID:           id,
			Name:         room.Name,
			CreatorName:  room.CreatorName,
			PlayersCount: len(room.Players),
			MaxPlayers:   room.MaxPlayers,
			CreatedAt:    room.CreatedAt,
		})
	}

	sort.Slice(listings, func(i, j int) bool {
		if !listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].CreatedAt.Before(listings[j].CreatedAt)
		}
		return listings[i].ID < listings[j].ID
	})
	return listings, nil
}

// Join adds a player to a waiting room
func (m *Manager) Join(ctx context.Context, roomID, playerID, playerName string) error {
	err := m.mutate(ctx, roomID, func(room *domain.Room) error {
		if room.Status != domain.RoomStatusWaiting {
			return domain.ErrRoomNotWaiting
		}
		if len(room.Players) >= room.MaxPlayers {
			return domain.ErrRoomFull
		}
		if _, ok := room.Players[playerID]; ok {
			return domain.ErrAlreadyInRoom
		}
		room.Players[playerID] = domain.RoomPlayer{
			ID:       playerID,
			Name:     playerName,
			JoinedAt: m.now(),
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.directory.SetStatus(ctx, playerID, domain.PlayerStatusInRoom); err != nil {
		m.logger.Warn("failed to mark player in room", "player_id", playerID, "error", err)
	}

	m.logger.Info("player joined room", "room_id", roomID, "player_id", playerID)
	return nil
}

// Leave removes a player from a room. An emptied room is deleted; if the
// creator leaves a non-empty room, creatorship passes to a remaining
// player.
func (m *Manager) Leave(ctx context.Context, roomID, playerID string) error {
	empty := false
	err := m.mutate(ctx, roomID, func(room *domain.Room) error {
		if _, ok := room.Players[playerID]; !ok {
			return domain.ErrNotInRoom
		}
		delete(room.Players, playerID)

		if len(room.Players) == 0 {
			empty = true
			return nil
		}
		if room.CreatorID == playerID {
			for id, p := range room.Players {
				room.CreatorID = id
				room.CreatorName = p.Name
				break
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if empty {
		if err := m.store.Delete(ctx, roomPath(roomID)); err != nil {
			return fmt.Errorf("deleting empty room: %w", err)
		}
		m.logger.Info("room deleted", "room_id", roomID, "reason", "empty")
	}

	if err := m.directory.SetStatus(ctx, playerID, domain.PlayerStatusOnline); err != nil {
		m.logger.Warn("failed to restore player status", "player_id", playerID, "error", err)
	}

	m.logger.Info("player left room", "room_id", roomID, "player_id", playerID)
	return nil
}

// SetReady toggles a player's readiness flag
func (m *Manager) SetReady(ctx context.Context, roomID, playerID string, ready bool) error {
	return m.mutate(ctx, roomID, func(room *domain.Room) error {
		player, ok := room.Players[playerID]
		if !ok {
			return domain.ErrNotInRoom
		}
		player.Ready = ready
		room.Players[playerID] = player
		return nil
	})
}

// Start activates the room: only the creator may start, the room must be
// full, and every player must be ready. On success a game is created, the
// room flips to playing and drops out of the available listing.
//
// The checks run inside the version-guarded mutation so a leave landing
// between the read and the write forces a re-validation instead of
// activating a room the opponent already left. The game is created only
// after the transition commits; if creation fails the room is rolled back
// to waiting.
func (m *Manager) Start(ctx context.Context, roomID, playerID string) (string, error) {
	var ids, names []string
	err := m.mutate(ctx, roomID, func(room *domain.Room) error {
		if room.Status != domain.RoomStatusWaiting {
			return domain.ErrRoomNotWaiting
		}
		if room.CreatorID != playerID {
			return domain.ErrNotCreator
		}
		if len(room.Players) < room.MaxPlayers {
			return domain.ErrNotEnoughPlayers
		}
		if !room.AllReady() {
			return domain.ErrPlayersNotReady
		}

		ids = make([]string, 0, len(room.Players))
		for id := range room.Players {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		names = make([]string, len(ids))
		for i, id := range ids {
			names[i] = room.Players[id].Name
		}

		room.Status = domain.RoomStatusPlaying
		return nil
	})
	if err != nil {
		return "", err
	}

	gameID, err := m.games.Create(ctx, ids, names)
	if err != nil {
		revertErr := m.mutate(ctx, roomID, func(room *domain.Room) error {
			room.Status = domain.RoomStatusWaiting
			return nil
		})
		if revertErr != nil {
			m.logger.Warn("failed to revert room after game creation failure",
				"room_id", roomID, "error", revertErr)
		}
		return "", fmt.Errorf("creating game for room: %w", err)
	}

	err = m.mutate(ctx, roomID, func(room *domain.Room) error {
		room.GameID = gameID
		return nil
	})
	if err != nil {
		return "", err
	}

	m.logger.Info("game started", "room_id", roomID, "game_id", gameID)
	return gameID, nil
}

// ReapIdle deletes rooms that have sat in waiting with at most one player
// for longer than the idle threshold. This is a cooperative best-effort
// sweep driven by a client-side timer, not server-side cron.
func (m *Manager) ReapIdle(ctx context.Context) (int, error) {
	docs, err := m.store.List(ctx, roomsPath)
	if err != nil {
		return 0, fmt.Errorf("listing rooms: %w", err)
	}

	now := m.now()
	removed := 0
	for id, data := range docs {
		var room domain.Room
		if err := json.Unmarshal(data, &room); err != nil {
			continue
		}
		if room.Status != domain.RoomStatusWaiting {
			continue
		}
		if len(room.Players) > 1 {
			continue
		}
		if now.Sub(room.CreatedAt) <= m.idleTimeout {
			continue
		}
		if err := m.store.Delete(ctx, roomPath(id)); err != nil {
			m.logger.Warn("failed to reap room", "room_id", id, "error", err)
			continue
		}
		m.logger.Info("room deleted", "room_id", id, "reason", "idle")
		removed++
	}
	return removed, nil
}
