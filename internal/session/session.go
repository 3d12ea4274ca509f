// Package session runs the per-player game loop on the server side: it
// submits answers on the player's behalf, polls the shared store for the
// opponent's half of each pair, watches opponent liveness and auto-advances
// past resolved questions, pushing everything it observes out as events.
//
// One Session exists per (game, player). The two sessions of a game never
// talk to each other; they converge purely through the store, the same way
// two remote clients would.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
)

// State labels where the session loop currently is
type State string

const (
	// StateIdle means the player has not answered the current question yet
	StateIdle State = "idle"
	// StateWaitingForOpponent means the player answered and the pair is
	// still incomplete
	StateWaitingForOpponent State = "waiting_for_opponent"
	// StateAdvancing means the pair resolved and the auto-advance delay is
	// running
	StateAdvancing State = "advancing"
	// StateFinished means the game ran to completion
	StateFinished State = "finished"
	// StateAborted means the opponent went silent and the loop gave up
	StateAborted State = "aborted"
)

// EventType labels outbound session events
type EventType string

const (
	EventQuestionResolved EventType = "question_resolved"
	EventAdvanced         EventType = "advanced"
	EventGameFinished     EventType = "game_finished"
	EventOpponentLeft     EventType = "opponent_left"
)

// Event is a session notification pushed to the player's client
type Event struct {
	Type     EventType              `json:"type"`
	GameID   string                 `json:"game_id"`
	PlayerID string                 `json:"player_id"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// Notifier delivers session events to a player's connected clients
type Notifier interface {
	Notify(playerID string, event Event)
}

// GameDriver is the slice of the game engine a session drives
type GameDriver interface {
	Get(ctx context.Context, gameID string) (*domain.Game, error)
	SubmitAnswer(ctx context.Context, gameID, playerID string, pos domain.Position, choice domain.Choice) (bool, error)
	Result(ctx context.Context, gameID string, pos domain.Position) (*domain.QuestionResult, error)
	Advance(ctx context.Context, gameID string, from domain.Position) (domain.Position, bool, error)
}

// Presence is the slice of the player directory a session watches and
// unwinds through: liveness checks while the game runs, status restoration
// when it aborts.
type Presence interface {
	IsLive(ctx context.Context, id string) (bool, error)
	SetStatus(ctx context.Context, id string, status domain.PlayerStatus) error
}

// Session is one player's server-side loop over a running game
type Session struct {
	gameID     string
	playerID   string
	opponentID string

	games    GameDriver
	presence Presence
	notifier Notifier
	cfg      *config.SessionConfig
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	stopped      bool
	advanceTimer *time.Timer

	cancel   context.CancelFunc
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New builds a session for one player of a game. The opponent id is fixed
// at creation; games are always two-player.
func New(ctx context.Context, gameID, playerID string, games GameDriver, presence Presence, notifier Notifier, cfg *config.SessionConfig, logger *slog.Logger) (*Session, error) {
	game, err := games.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if playerID != game.Player1ID && playerID != game.Player2ID {
		return nil, domain.ErrNotInRoom
	}

	return &Session{
		gameID:     gameID,
		playerID:   playerID,
		opponentID: game.OpponentOf(playerID),
		games:      games,
		presence:   presence,
		notifier:   notifier,
		cfg:        cfg,
		logger: logger.With(
			"game_id", gameID,
			"player_id", playerID,
		),
		state:  StateIdle,
		doneCh: make(chan struct{}),
	}, nil
}

// State returns the session's current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the polling loop
func (s *Session) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	s.logger.Info("session started")
}

// Stop tears the loop down, cancelling any pending auto-advance. Safe to
// call more than once and from any goroutine, including the loop itself.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		if s.advanceTimer != nil {
			s.advanceTimer.Stop()
		}
		s.mu.Unlock()

		s.cancel()
		<-s.doneCh
		s.logger.Info("session stopped")
	})
}

// Done is closed once the loop has exited
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// SubmitAnswer records the player's choice for the game's current question.
// If this submission completed the pair the result is handled immediately;
// otherwise the loop falls back to polling for the opponent.
func (s *Session) SubmitAnswer(ctx context.Context, choice domain.Choice) error {
	game, err := s.games.Get(ctx, s.gameID)
	if err != nil {
		return err
	}
	pos := game.Position()

	completed, err := s.games.SubmitAnswer(ctx, s.gameID, s.playerID, pos, choice)
	if err != nil {
		return err
	}

	if completed {
		s.onResolved(ctx, pos)
		return nil
	}

	s.setState(StateWaitingForOpponent)
	return nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// run drives the two poll timers until the session is stopped. The answer
// poll only does work while the player is waiting on the opponent; the
// liveness poll runs for the whole life of the session.
func (s *Session) run(ctx context.Context) {
	defer close(s.doneCh)

	answerTicker := time.NewTicker(s.cfg.AnswerPollInterval)
	defer answerTicker.Stop()
	livenessTicker := time.NewTicker(s.cfg.LivenessPollInterval)
	defer livenessTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-answerTicker.C:
			if s.State() != StateWaitingForOpponent {
				continue
			}
			s.checkResult(ctx)

		case <-livenessTicker.C:
			s.checkOpponent(ctx)
		}
	}
}

// checkResult polls the current question's result cell. The opponent's
// completing submission writes it; seeing it lets this side move on.
func (s *Session) checkResult(ctx context.Context) {
	game, err := s.games.Get(ctx, s.gameID)
	if err != nil {
		s.logger.Warn("answer poll failed", "error", err)
		return
	}
	if game.Status == domain.GameStatusFinished {
		s.onFinished()
		return
	}

	result, err := s.games.Result(ctx, s.gameID, game.Position())
	if err != nil {
		s.logger.Warn("answer poll failed", "error", err)
		return
	}
	if result == nil {
		return
	}
	s.onResolved(ctx, game.Position())
}

// onResolved reports the resolved pair and schedules the auto-advance.
// The delay gives the player time to read the outcome before the next
// question appears.
func (s *Session) onResolved(ctx context.Context, pos domain.Position) {
	s.setState(StateAdvancing)

	result, err := s.games.Result(ctx, s.gameID, pos)
	if err != nil {
		s.logger.Warn("reading resolved result failed", "error", err)
	}

	payload := map[string]interface{}{
		"round":    pos.Round,
		"question": pos.Question,
	}
	if result != nil {
		payload["result"] = result
	}
	s.notify(EventQuestionResolved, payload)

	s.mu.Lock()
	if !s.stopped {
		s.advanceTimer = time.AfterFunc(s.cfg.AutoAdvanceDelay, func() {
			s.advance(pos)
		})
	}
	s.mu.Unlock()
}

func (s *Session) advance(from domain.Position) {
	s.mu.Lock()
	if s.stopped || s.state != StateAdvancing {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	next, done, err := s.games.Advance(ctx, s.gameID, from)
	if err != nil {
		s.logger.Warn("advance failed", "error", err)
		s.setState(StateIdle)
		return
	}
	if done {
		s.onFinished()
		return
	}

	s.setState(StateIdle)
	s.notify(EventAdvanced, map[string]interface{}{
		"round":    next.Round,
		"question": next.Question,
	})
}

func (s *Session) onFinished() {
	s.setState(StateFinished)
	s.notify(EventGameFinished, nil)
	go s.Stop()
}

// checkOpponent aborts the session once the opponent's heartbeat lapses.
// A missed beat inside the TTL does not trigger this; only true silence
// does.
func (s *Session) checkOpponent(ctx context.Context) {
	state := s.State()
	if state == StateFinished || state == StateAborted {
		return
	}

	live, err := s.presence.IsLive(ctx, s.opponentID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("liveness poll failed", "error", err)
		return
	}
	if live {
		return
	}

	s.setState(StateAborted)

	// Unwind the game: both players go back to the lobby, the departed
	// opponent included, so a returning client is not stuck in_game.
	for _, id := range []string{s.playerID, s.opponentID} {
		if err := s.presence.SetStatus(ctx, id, domain.PlayerStatusOnline); err != nil {
			s.logger.Warn("failed to restore player status", "player_id", id, "error", err)
		}
	}

	s.notify(EventOpponentLeft, map[string]interface{}{
		"opponent_id": s.opponentID,
	})
	s.logger.Info("opponent went silent, aborting session", "opponent_id", s.opponentID)
	go s.Stop()
}

func (s *Session) notify(eventType EventType, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(s.playerID, Event{
		Type:     eventType,
		GameID:   s.gameID,
		PlayerID: s.playerID,
		Payload:  payload,
	})
}
