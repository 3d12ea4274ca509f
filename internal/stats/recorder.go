package stats

import (
	"context"
	"log/slog"

	"github.com/dilemma-game/internal/domain"
)

// EventPublisher hands result events to a message broker
type EventPublisher interface {
	PublishResult(event domain.ResultEvent) error
}

// Recorder routes statistics updates from the game engine. With a
// publisher configured, resolved-question events flow through the broker
// and land in the repository via the consumer; otherwise they are applied
// directly. Completion markers always go straight to the repository since
// they are already exactly-once on the caller's side.
type Recorder struct {
	repo      *Repository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewRecorder creates a stats recorder. Either argument may be nil.
func NewRecorder(repo *Repository, publisher EventPublisher, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, publisher: publisher, logger: logger}
}

// ApplyResult records one resolved question
func (r *Recorder) ApplyResult(ctx context.Context, event domain.ResultEvent) error {
	if r.publisher != nil {
		return r.publisher.PublishResult(event)
	}
	if r.repo != nil {
		return r.repo.ApplyResult(ctx, event)
	}
	return nil
}

// MarkGameCompleted records a finished game for every participant
func (r *Recorder) MarkGameCompleted(ctx context.Context, gameID string, playerIDs []string) error {
	if r.repo == nil {
		return nil
	}
	return r.repo.MarkGameCompleted(ctx, gameID, playerIDs)
}
