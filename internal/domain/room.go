package domain

import "time"

// RoomStatus represents the room lifecycle state
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusReady    RoomStatus = "ready"
	RoomStatusPlaying  RoomStatus = "playing"
	RoomStatusFinished RoomStatus = "finished"
)

// RoomPlayer is a player's entry inside a room
type RoomPlayer struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joined_at"`
}

// Room is a pre-game lobby pairing up to MaxPlayers players
type Room struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	CreatorID   string                `json:"creator_id"`
	CreatorName string                `json:"creator_name"`
	Players     map[string]RoomPlayer `json:"players"`
	MaxPlayers  int                   `json:"max_players"`
	Status      RoomStatus            `json:"status"`
	GameID      string                `json:"game_id,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// HasFreeSlot reports whether the room can accept another player
func (r *Room) HasFreeSlot() bool {
	return r.Status == RoomStatusWaiting && len(r.Players) < r.MaxPlayers
}

// AllReady reports whether every player in the room has toggled ready
func (r *Room) AllReady() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// RoomListing is the reduced view returned by the available-rooms query
type RoomListing struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatorName  string    `json:"creator_name"`
	PlayersCount int       `json:"players_count"`
	MaxPlayers   int       `json:"max_players"`
	CreatedAt    time.Time `json:"created_at"`
}
