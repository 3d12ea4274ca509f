package domain

import "time"

// PlayerStatus represents where a player currently is in the matchmaking flow
type PlayerStatus string

const (
	PlayerStatusOnline  PlayerStatus = "online"
	PlayerStatusInRoom  PlayerStatus = "in_room"
	PlayerStatusOffline PlayerStatus = "offline"
)

// Player represents a registered player
type Player struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"password_hash,omitempty"`
	TotalScore   int64        `json:"total_score"`
	GamesPlayed  int64        `json:"games_played"`
	IsOnline     bool         `json:"is_online"`
	Status       PlayerStatus `json:"status,omitempty"`
	LastPing     time.Time    `json:"last_ping"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Live reports whether the player counts as present. The online flag alone
// cannot detect silently crashed clients, so presence also requires a
// heartbeat within the TTL.
func (p *Player) Live(now time.Time, ttl time.Duration) bool {
	return p.IsOnline && now.Sub(p.LastPing) < ttl
}

// PlayerInfo is a lightweight identity struct used in listings
type PlayerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PlayerStats holds a player's durable statistics
type PlayerStats struct {
	PlayerID          string           `json:"player_id"`
	Username          string           `json:"username,omitempty"`
	TotalScore        int64            `json:"total_score"`
	QuestionsResolved int64            `json:"questions_resolved"`
	GamesCompleted    int64            `json:"games_completed"`
	ResultCounts      map[string]int64 `json:"result_counts,omitempty"`
	LastPlayed        time.Time        `json:"last_played"`
}
