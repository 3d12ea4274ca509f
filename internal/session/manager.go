package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dilemma-game/internal/config"
)

// Manager is the registry of running sessions, keyed by (game, player)
type Manager struct {
	games    GameDriver
	presence Presence
	notifier Notifier
	cfg      *config.SessionConfig
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session registry
func NewManager(games GameDriver, presence Presence, notifier Notifier, cfg *config.SessionConfig, logger *slog.Logger) *Manager {
	return &Manager{
		games:    games,
		presence: presence,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func key(gameID, playerID string) string {
	return gameID + ":" + playerID
}

// Open returns the running session for the player in the game, starting
// one if none exists. Reopening an existing session is a no-op so clients
// can reconnect freely.
func (m *Manager) Open(ctx context.Context, gameID, playerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(gameID, playerID)
	if existing, ok := m.sessions[k]; ok {
		select {
		case <-existing.Done():
			// Fell through: the old loop exited, replace it
		default:
			return existing, nil
		}
	}

	sess, err := New(ctx, gameID, playerID, m.games, m.presence, m.notifier, m.cfg, m.logger)
	if err != nil {
		return nil, err
	}
	sess.Start()
	m.sessions[k] = sess
	return sess, nil
}

// Get returns the session for the player in the game, or nil
func (m *Manager) Get(gameID, playerID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key(gameID, playerID)]
}

// Close stops and drops one session
func (m *Manager) Close(gameID, playerID string) {
	m.mu.Lock()
	sess, ok := m.sessions[key(gameID, playerID)]
	if ok {
		delete(m.sessions, key(gameID, playerID))
	}
	m.mu.Unlock()

	if ok {
		sess.Stop()
	}
}

// CloseAll stops every running session, used at shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Stop()
	}
}
