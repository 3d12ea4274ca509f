// Package game implements the per-question dilemma state machine: question
// sequencing across rounds, simultaneous-answer collection, payoff
// computation, score accrual and completion detection.
//
// Both clients drive the same game document without coordination. Safety
// rests on two rules: each answer cell is written at most once per player
// (per-player sub-paths, never contended), and "both answered" is detected
// by each side re-reading after its own write. The side that completes the
// pair resolves the question; a version-guarded write on the result cell
// makes resolution exactly-once even when both sides race to it.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
	"github.com/dilemma-game/internal/store"
)

const gamesPath = "games"

// casAttempts bounds the re-read loop on version conflicts
const casAttempts = 5

// ScoreKeeper is the slice of the player directory the engine needs for
// durable per-player totals
type ScoreKeeper interface {
	AddScore(ctx context.Context, id string, delta int64, playedUnits int64) error
	SetStatus(ctx context.Context, id string, status domain.PlayerStatus) error
}

// StatsRecorder receives resolved-question and completed-game events for
// the durable statistics pipeline. May be nil when stats are disabled.
type StatsRecorder interface {
	ApplyResult(ctx context.Context, event domain.ResultEvent) error
	MarkGameCompleted(ctx context.Context, gameID string, playerIDs []string) error
}

// Engine provides game lifecycle and answer-resolution operations
type Engine struct {
	store    store.Store
	scores   ScoreKeeper
	stats    StatsRecorder
	settings domain.GameSettings
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a game engine
func New(st store.Store, scores ScoreKeeper, stats StatsRecorder, cfg *config.GameConfig, logger *slog.Logger) *Engine {
	return &Engine{
		store:  st,
		scores: scores,
		stats:  stats,
		settings: domain.GameSettings{
			Rounds:            cfg.Rounds,
			QuestionsPerRound: cfg.QuestionsPerRound,
		},
		logger: logger,
		now:    time.Now,
	}
}

func gamePath(id string) string { return gamesPath + "/" + id }

func questionPath(gameID string, pos domain.Position) string {
	return gamePath(gameID) + "/rounds/" + strconv.Itoa(pos.Round) +
		"/questions/" + strconv.Itoa(pos.Question)
}

func answerPath(gameID string, pos domain.Position, playerID string) string {
	return questionPath(gameID, pos) + "/answers/" + playerID
}

func resultPath(gameID string, pos domain.Position) string {
	return questionPath(gameID, pos) + "/results"
}

func completionPath(gameID string) string {
	return gamePath(gameID) + "/completed"
}

// Create builds a new game between exactly two players: the meta document
// plus the full round/question skeleton with empty answer maps
func (e *Engine) Create(ctx context.Context, playerIDs, playerNames []string) (string, error) {
	if len(playerIDs) != 2 || len(playerNames) != 2 {
		return "", fmt.Errorf("%w: a game needs exactly two players", domain.ErrInvalidRequest)
	}

	gameID := uuid.NewString()
	game := domain.Game{
		ID:              gameID,
		Player1ID:       playerIDs[0],
		Player1Name:     playerNames[0],
		Player2ID:       playerIDs[1],
		Player2Name:     playerNames[1],
		CurrentRound:    1,
		CurrentQuestion: 1,
		Status:          domain.GameStatusPlaying,
		Settings:        e.settings,
		Scores: map[string]int64{
			playerIDs[0]: 0,
			playerIDs[1]: 0,
		},
		CreatedAt: e.now(),
	}

	if err := e.store.Set(ctx, gamePath(gameID), &game); err != nil {
		return "", fmt.Errorf("creating game: %w", err)
	}

	bank := questionBank()
	idx := 0
	for r := 1; r <= e.settings.Rounds; r++ {
		for q := 1; q <= e.settings.QuestionsPerRound[r-1]; q++ {
			question := bank[idx%len(bank)]
			idx++
			pos := domain.Position{Round: r, Question: q}
			if err := e.store.Set(ctx, questionPath(gameID, pos), &question); err != nil {
				return "", fmt.Errorf("writing question skeleton: %w", err)
			}
		}
	}

	e.logger.Info("game created",
		"game_id", gameID,
		"player1_id", playerIDs[0],
		"player2_id", playerIDs[1],
	)
	return gameID, nil
}

// Get returns the game meta document
func (e *Engine) Get(ctx context.Context, gameID string) (*domain.Game, error) {
	var game domain.Game
	found, err := e.store.Get(ctx, gamePath(gameID), &game)
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}
	if !found {
		return nil, domain.ErrGameNotFound
	}
	return &game, nil
}

// Question returns the question text for a position
func (e *Engine) Question(ctx context.Context, gameID string, pos domain.Position) (*domain.Question, error) {
	if !e.settings.Valid(pos) {
		return nil, domain.ErrInvalidPosition
	}
	var q domain.Question
	found, err := e.store.Get(ctx, questionPath(gameID, pos), &q)
	if err != nil {
		return nil, fmt.Errorf("getting question: %w", err)
	}
	if !found {
		return nil, domain.ErrInvalidPosition
	}
	return &q, nil
}

// Answer returns a player's recorded answer for a position, or nil when
// the player has not answered yet
func (e *Engine) Answer(ctx context.Context, gameID string, pos domain.Position, playerID string) (*domain.Answer, error) {
	var answer domain.Answer
	found, err := e.store.Get(ctx, answerPath(gameID, pos, playerID), &answer)
	if err != nil {
		return nil, fmt.Errorf("getting answer: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &answer, nil
}

// Result returns the resolved result for a position, or nil while the
// pair is incomplete
func (e *Engine) Result(ctx context.Context, gameID string, pos domain.Position) (*domain.QuestionResult, error) {
	var result domain.QuestionResult
	found, err := e.store.Get(ctx, resultPath(gameID, pos), &result)
	if err != nil {
		return nil, fmt.Errorf("getting result: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &result, nil
}

// SubmitAnswer records the player's choice for the given cell. It returns
// true only when this call observed both answers present, i.e. the caller
// completed the pair; a false return means the opponent has not answered
// and the caller must keep polling. Re-submission into an already
// answered cell fails with ErrAnswerAlreadySubmitted and never
// recomputes the result or scores.
func (e *Engine) SubmitAnswer(ctx context.Context, gameID, playerID string, pos domain.Position, choice domain.Choice) (bool, error) {
	if !choice.Valid() {
		return false, domain.ErrInvalidChoice
	}
	if !e.settings.Valid(pos) {
		return false, domain.ErrInvalidPosition
	}

	game, err := e.Get(ctx, gameID)
	if err != nil {
		return false, err
	}
	if game.Status == domain.GameStatusFinished {
		return false, domain.ErrGameFinished
	}
	if playerID != game.Player1ID && playerID != game.Player2ID {
		return false, fmt.Errorf("%w: player %s not in game", domain.ErrInvalidRequest, playerID)
	}

	// Idempotence guard: the cell is write-once per player
	existing, err := e.Answer(ctx, gameID, pos, playerID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, domain.ErrAnswerAlreadySubmitted
	}

	answer := domain.Answer{Choice: choice, SubmittedAt: e.now()}
	if err := e.store.Set(ctx, answerPath(gameID, pos, playerID), &answer); err != nil {
		return false, fmt.Errorf("writing answer: %w", err)
	}

	// Re-read the opponent's cell after our own write. A miss here only
	// means the opponent's write has not landed yet; the next poll tick
	// will see it.
	opponentID := game.OpponentOf(playerID)
	opponent, err := e.Answer(ctx, gameID, pos, opponentID)
	if err != nil {
		return false, err
	}
	if opponent == nil {
		return false, nil
	}

	if err := e.resolve(ctx, game, pos, playerID, choice, opponent.Choice); err != nil {
		return false, err
	}
	return true, nil
}

// resolve computes and persists the question result and applies scores.
// Both clients can reach this point when their completing reads race; the
// version-guarded result write lets exactly one of them through.
func (e *Engine) resolve(ctx context.Context, game *domain.Game, pos domain.Position, playerID string, own, opp domain.Choice) error {
	var c1, c2 domain.Choice
	if playerID == game.Player1ID {
		c1, c2 = own, opp
	} else {
		c1, c2 = opp, own
	}

	s1, s2, kind, err := domain.Payoff(c1, c2)
	if err != nil {
		return err
	}

	result := domain.QuestionResult{
		Player1ID:    game.Player1ID,
		Player2ID:    game.Player2ID,
		Player1Score: s1,
		Player2Score: s2,
		Kind:         kind,
		ResolvedAt:   e.now(),
	}

	// A result cell starts at version 0 and is written exactly once
	err = e.store.SetVersioned(ctx, resultPath(game.ID, pos), &result, 0)
	if errors.Is(err, domain.ErrVersionConflict) {
		// The opponent's completing call got here first
		return nil
	}
	if err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if err := e.addScores(ctx, game.ID, s1, s2); err != nil {
		return fmt.Errorf("updating game scores: %w", err)
	}

	if err := e.scores.AddScore(ctx, game.Player1ID, s1, 0); err != nil {
		e.logger.Warn("failed to update player total", "player_id", game.Player1ID, "error", err)
	}
	if err := e.scores.AddScore(ctx, game.Player2ID, s2, 0); err != nil {
		e.logger.Warn("failed to update player total", "player_id", game.Player2ID, "error", err)
	}

	if e.stats != nil {
		event := domain.ResultEvent{
			GameID:       game.ID,
			Round:        pos.Round,
			Question:     pos.Question,
			Player1ID:    game.Player1ID,
			Player2ID:    game.Player2ID,
			Player1Score: s1,
			Player2Score: s2,
			Kind:         kind,
			Timestamp:    e.now(),
		}
		if err := e.stats.ApplyResult(ctx, event); err != nil {
			e.logger.Warn("failed to record result event", "game_id", game.ID, "error", err)
		}
	}

	e.logger.Info("question resolved",
		"game_id", game.ID,
		"round", pos.Round,
		"question", pos.Question,
		"kind", string(kind),
	)
	return nil
}

// addScores folds one question's payoff into the game's running totals.
// The fold re-reads the document under a version guard on every attempt,
// so a resolver whose write was delayed past the next question's
// resolution retries against the fresh totals instead of reverting them.
func (e *Engine) addScores(ctx context.Context, gameID string, s1, s2 int64) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		var game domain.Game
		version, found, err := e.store.GetVersioned(ctx, gamePath(gameID), &game)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrGameNotFound
		}

		if game.Scores == nil {
			game.Scores = make(map[string]int64, 2)
		}
		game.Scores[game.Player1ID] += s1
		game.Scores[game.Player2ID] += s2

		err = e.store.SetVersioned(ctx, gamePath(gameID), &game, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return domain.ErrVersionConflict
}

// Advance moves the game past the resolved question at from, or finishes
// it when from was the last question. Both clients call this independently
// after observing the same resolved pair; the next position is a pure
// function of from, so both writes carry the same value and a second
// advance from a stale from is a no-op rather than a skip.
func (e *Engine) Advance(ctx context.Context, gameID string, from domain.Position) (domain.Position, bool, error) {
	game, err := e.Get(ctx, gameID)
	if err != nil {
		return domain.Position{}, false, err
	}
	if game.Status == domain.GameStatusFinished {
		return game.Position(), true, nil
	}
	if game.Position() != from {
		// The other side already moved the game on
		return game.Position(), false, nil
	}

	next, done := game.Settings.Next(from)
	if done {
		if err := e.finish(ctx, game); err != nil {
			return next, true, err
		}
		return game.Position(), true, nil
	}

	err = e.store.Update(ctx, gamePath(gameID), map[string]any{
		"current_round":    next.Round,
		"current_question": next.Question,
	})
	if err != nil {
		return next, false, fmt.Errorf("advancing game: %w", err)
	}
	return next, false, nil
}

// finish marks the game terminal and restores both players to the lobby.
// Both clients reach this independently; the version-guarded completion
// marker keeps the completed-game statistics exactly-once.
func (e *Engine) finish(ctx context.Context, game *domain.Game) error {
	err := e.store.Update(ctx, gamePath(game.ID), map[string]any{
		"status": domain.GameStatusFinished,
	})
	if err != nil {
		return fmt.Errorf("finishing game: %w", err)
	}

	for _, id := range []string{game.Player1ID, game.Player2ID} {
		if err := e.scores.SetStatus(ctx, id, domain.PlayerStatusOnline); err != nil {
			e.logger.Warn("failed to restore player status", "player_id", id, "error", err)
		}
	}

	marker := map[string]any{"completed_at": e.now()}
	err = e.store.SetVersioned(ctx, completionPath(game.ID), marker, 0)
	if errors.Is(err, domain.ErrVersionConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("writing completion marker: %w", err)
	}

	for _, id := range []string{game.Player1ID, game.Player2ID} {
		if err := e.scores.AddScore(ctx, id, 0, 1); err != nil {
			e.logger.Warn("failed to bump games played", "player_id", id, "error", err)
		}
	}
	if e.stats != nil {
		ids := []string{game.Player1ID, game.Player2ID}
		if err := e.stats.MarkGameCompleted(ctx, game.ID, ids); err != nil {
			e.logger.Warn("failed to mark game completed", "game_id", game.ID, "error", err)
		}
	}

	e.logger.Info("game finished", "game_id", game.ID)
	return nil
}

// Results returns the terminal aggregation for a game
func (e *Engine) Results(ctx context.Context, gameID string) (*domain.GameSummary, error) {
	game, err := e.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &domain.GameSummary{
		GameID:      game.ID,
		Player1ID:   game.Player1ID,
		Player2ID:   game.Player2ID,
		Player1Name: game.Player1Name,
		Player2Name: game.Player2Name,
		Scores:      game.Scores,
		Status:      game.Status,
	}, nil
}

// RoundResults returns the resolved results of one round keyed by
// question number
func (e *Engine) RoundResults(ctx context.Context, gameID string, round int) (map[int]domain.QuestionResult, error) {
	if round < 1 || round > e.settings.Rounds {
		return nil, domain.ErrInvalidPosition
	}

	out := make(map[int]domain.QuestionResult)
	for q := 1; q <= e.settings.QuestionsPerRound[round-1]; q++ {
		result, err := e.Result(ctx, gameID, domain.Position{Round: round, Question: q})
		if err != nil {
			return nil, err
		}
		if result != nil {
			out[q] = *result
		}
	}
	return out, nil
}

// History lists a player's games, newest first
func (e *Engine) History(ctx context.Context, playerID string, limit int) ([]domain.GameHistoryEntry, error) {
	docs, err := e.store.List(ctx, gamesPath)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}

	var entries []domain.GameHistoryEntry
	for id, data := range docs {
		var game domain.Game
		if err := json.Unmarshal(data, &game); err != nil {
			continue
		}
		if game.Player1ID != playerID && game.Player2ID != playerID {
			continue
		}

		opponentID := game.OpponentOf(playerID)
		opponentName := game.Player2Name
		if opponentID == game.Player1ID {
			opponentName = game.Player1Name
		}

		own := game.Scores[playerID]
		opp := game.Scores[opponentID]
		outcome := "draw"
		if own > opp {
			outcome = "win"
		} else if own < opp {
			outcome = "lose"
		}

		entries = append(entries, domain.GameHistoryEntry{
			GameID:        id,
			OpponentName:  opponentName,
			PlayerScore:   own,
			OpponentScore: opp,
			Outcome:       outcome,
			PlayedAt:      game.CreatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PlayedAt.After(entries[j].PlayedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
