// Package directory tracks player identity, credentials and presence on
// top of the shared store. Presence is a derived property: a player counts
// as live only while the online flag is set and a heartbeat has landed
// within the liveness TTL.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
	"github.com/dilemma-game/internal/store"
)

const playersPath = "players"

// Directory provides player identity and presence operations
type Directory struct {
	store  store.Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a player directory
func New(st store.Store, cfg *config.PresenceConfig, logger *slog.Logger) *Directory {
	return &Directory{
		store:  st,
		ttl:    cfg.LivenessTTL,
		logger: logger,
		now:    time.Now,
	}
}

func playerPath(id string) string { return playersPath + "/" + id }

// Create registers a new player with an already-hashed password. Username
// uniqueness is enforced by a scan before the write; there is no
// transactional guard, so two concurrent registrations of the same name
// can both pass the scan (documented protocol race).
func (d *Directory) Create(ctx context.Context, username, passwordHash string) (string, error) {
	existing, err := d.FindByUsername(ctx, username)
	if err != nil && !domain.IsNotFoundError(err) {
		return "", err
	}
	if existing != nil {
		return "", domain.ErrUsernameTaken
	}

	player := domain.Player{
		Username:     username,
		PasswordHash: passwordHash,
		Status:       domain.PlayerStatusOffline,
		CreatedAt:    d.now(),
	}
	id, err := d.store.Push(ctx, playersPath, player)
	if err != nil {
		return "", fmt.Errorf("creating player: %w", err)
	}

	// The id is generated by the push; persist it inside the document too
	if err := d.store.Update(ctx, playerPath(id), map[string]any{"id": id}); err != nil {
		return "", fmt.Errorf("storing player id: %w", err)
	}

	d.logger.Info("player registered", "player_id", id, "username", username)
	return id, nil
}

// FindByID returns the player with the given id
func (d *Directory) FindByID(ctx context.Context, id string) (*domain.Player, error) {
	var player domain.Player
	found, err := d.store.Get(ctx, playerPath(id), &player)
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	if !found {
		return nil, domain.ErrPlayerNotFound
	}
	player.ID = id
	return &player, nil
}

// FindByUsername scans the player collection for a username match
func (d *Directory) FindByUsername(ctx context.Context, username string) (*domain.Player, error) {
	docs, err := d.store.List(ctx, playersPath)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	for id, data := range docs {
		var player domain.Player
		if err := json.Unmarshal(data, &player); err != nil {
			d.logger.Warn("skipping malformed player document", "player_id", id, "error", err)
			continue
		}
		if player.Username == username {
			player.ID = id
			return &player, nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

// VerifyPassword checks plaintext credentials and returns the player id
func (d *Directory) VerifyPassword(ctx context.Context, username, password string) (string, error) {
	player, err := d.FindByUsername(ctx, username)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(password)) != nil {
		return "", domain.ErrInvalidCredentials
	}
	return player.ID, nil
}

// SetOnline flips the online flag and refreshes the heartbeat so a player
// logging in is immediately live
func (d *Directory) SetOnline(ctx context.Context, id string, online bool) error {
	status := domain.PlayerStatusOnline
	if !online {
		status = domain.PlayerStatusOffline
	}
	err := d.store.Update(ctx, playerPath(id), map[string]any{
		"is_online": online,
		"status":    status,
		"last_ping": d.now(),
	})
	if err != nil {
		return fmt.Errorf("updating online flag: %w", err)
	}
	return nil
}

// SetStatus updates the matchmaking status field ("online"/"in_room")
func (d *Directory) SetStatus(ctx context.Context, id string, status domain.PlayerStatus) error {
	err := d.store.Update(ctx, playerPath(id), map[string]any{"status": status})
	if err != nil {
		return fmt.Errorf("updating player status: %w", err)
	}
	return nil
}

// Heartbeat refreshes the player's liveness timestamp
func (d *Directory) Heartbeat(ctx context.Context, id string) error {
	err := d.store.Update(ctx, playerPath(id), map[string]any{"last_ping": d.now()})
	if err != nil {
		return fmt.Errorf("updating heartbeat: %w", err)
	}
	return nil
}

// AddScore accumulates into the player's persistent total score and bumps
// the games-played counter by the given unit
func (d *Directory) AddScore(ctx context.Context, id string, delta int64, playedUnits int64) error {
	player, err := d.FindByID(ctx, id)
	if err != nil {
		return err
	}
	err = d.store.Update(ctx, playerPath(id), map[string]any{
		"total_score":  player.TotalScore + delta,
		"games_played": player.GamesPlayed + playedUnits,
	})
	if err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	return nil
}

// IsLive reports whether the player currently counts as present
func (d *Directory) IsLive(ctx context.Context, id string) (bool, error) {
	player, err := d.FindByID(ctx, id)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return player.Live(d.now(), d.ttl), nil
}

// ListOnline returns all live players, optionally excluding one id.
// Liveness combines the online flag with the heartbeat TTL.
func (d *Directory) ListOnline(ctx context.Context, excludeID string) ([]domain.Player, error) {
	docs, err := d.store.List(ctx, playersPath)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	now := d.now()
	var online []domain.Player
	for id, data := range docs {
		if id == excludeID {
			continue
		}
		var player domain.Player
		if err := json.Unmarshal(data, &player); err != nil {
			d.logger.Warn("skipping malformed player document", "player_id", id, "error", err)
			continue
		}
		if !player.Live(now, d.ttl) {
			continue
		}
		player.ID = id
		player.PasswordHash = ""
		online = append(online, player)
	}
	return online, nil
}
