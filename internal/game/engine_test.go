package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/domain"
	"github.com/dilemma-game/internal/store"
)

type fakeScoreKeeper struct {
	mu       sync.Mutex
	scores   map[string]int64
	played   map[string]int64
	statuses map[string]domain.PlayerStatus
}

func newFakeScoreKeeper() *fakeScoreKeeper {
	return &fakeScoreKeeper{
		scores:   make(map[string]int64),
		played:   make(map[string]int64),
		statuses: make(map[string]domain.PlayerStatus),
	}
}

func (f *fakeScoreKeeper) AddScore(_ context.Context, id string, delta, playedUnits int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[id] += delta
	f.played[id] += playedUnits
	return nil
}

func (f *fakeScoreKeeper) SetStatus(_ context.Context, id string, status domain.PlayerStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

type fakeStats struct {
	mu        sync.Mutex
	events    []domain.ResultEvent
	completed []string
}

func (f *fakeStats) ApplyResult(_ context.Context, event domain.ResultEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStats) MarkGameCompleted(_ context.Context, gameID string, playerIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, gameID)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeScoreKeeper, *fakeStats) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scores := newFakeScoreKeeper()
	stats := &fakeStats{}
	e := New(store.NewMemory(), scores, stats, &config.GameConfig{
		Rounds:            2,
		QuestionsPerRound: []int{2, 2},
	}, logger)
	return e, scores, stats
}

func createGame(t *testing.T, e *Engine) string {
	t.Helper()
	id, err := e.Create(context.Background(), []string{"p1", "p2"}, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestCreateWritesSkeleton(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)

	game, err := e.Get(ctx, gameID)
	if err != nil {
		t.Fatal(err)
	}
	if game.CurrentRound != 1 || game.CurrentQuestion != 1 {
		t.Errorf("start position = (%d,%d), want (1,1)", game.CurrentRound, game.CurrentQuestion)
	}
	if game.Status != domain.GameStatusPlaying {
		t.Errorf("status = %q", game.Status)
	}
	if game.Scores["p1"] != 0 || game.Scores["p2"] != 0 {
		t.Errorf("scores should start at zero: %v", game.Scores)
	}

	for r := 1; r <= 2; r++ {
		for q := 1; q <= 2; q++ {
			question, err := e.Question(ctx, gameID, domain.Position{Round: r, Question: q})
			if err != nil {
				t.Fatalf("question (%d,%d): %v", r, q, err)
			}
			if question.Text == "" {
				t.Errorf("question (%d,%d) has no text", r, q)
			}
		}
	}
}

func TestCreateRequiresTwoPlayers(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if _, err := e.Create(context.Background(), []string{"p1"}, []string{"alice"}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestSubmitAnswerPairResolution(t *testing.T) {
	e, scores, stats := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)
	pos := domain.Position{Round: 1, Question: 1}

	// First answer: pair incomplete
	completed, err := e.SubmitAnswer(ctx, gameID, "p1", pos, domain.ChoiceBetray)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if completed {
		t.Fatal("single answer should not complete the pair")
	}
	if result, _ := e.Result(ctx, gameID, pos); result != nil {
		t.Fatal("result must not exist before both answers")
	}

	// Second answer completes and resolves
	completed, err = e.SubmitAnswer(ctx, gameID, "p2", pos, domain.ChoiceCooperate)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if !completed {
		t.Fatal("second answer should complete the pair")
	}

	result, err := e.Result(ctx, gameID, pos)
	if err != nil || result == nil {
		t.Fatalf("resolved result missing: %v", err)
	}
	if result.Player1Score != 5 || result.Player2Score != 0 {
		t.Errorf("payoff = (%d,%d), want (5,0)", result.Player1Score, result.Player2Score)
	}
	if result.Kind != domain.ResultBetrayCooperate {
		t.Errorf("kind = %q", result.Kind)
	}

	game, _ := e.Get(ctx, gameID)
	if game.Scores["p1"] != 5 || game.Scores["p2"] != 0 {
		t.Errorf("game scores = %v", game.Scores)
	}
	if scores.scores["p1"] != 5 || scores.scores["p2"] != 0 {
		t.Errorf("durable totals = %v", scores.scores)
	}
	if len(stats.events) != 1 {
		t.Errorf("stats saw %d events, want 1", len(stats.events))
	}
}

func TestSubmitAnswerIdempotence(t *testing.T) {
	e, scores, stats := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)
	pos := domain.Position{Round: 1, Question: 1}

	e.SubmitAnswer(ctx, gameID, "p1", pos, domain.ChoiceCooperate)
	e.SubmitAnswer(ctx, gameID, "p2", pos, domain.ChoiceCooperate)

	// Re-submission must not recompute anything
	_, err := e.SubmitAnswer(ctx, gameID, "p1", pos, domain.ChoiceBetray)
	if !errors.Is(err, domain.ErrAnswerAlreadySubmitted) {
		t.Fatalf("got %v, want ErrAnswerAlreadySubmitted", err)
	}

	game, _ := e.Get(ctx, gameID)
	if game.Scores["p1"] != 3 || game.Scores["p2"] != 3 {
		t.Errorf("scores changed on re-submission: %v", game.Scores)
	}
	if scores.scores["p1"] != 3 {
		t.Errorf("durable total changed on re-submission: %v", scores.scores)
	}
	if len(stats.events) != 1 {
		t.Errorf("stats saw %d events, want 1", len(stats.events))
	}

	answer, _ := e.Answer(ctx, gameID, pos, "p1")
	if answer.Choice != domain.ChoiceCooperate {
		t.Errorf("original answer was overwritten: %q", answer.Choice)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)

	if _, err := e.SubmitAnswer(ctx, gameID, "p1", domain.Position{Round: 1, Question: 1}, "shrug"); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Errorf("bad choice: got %v", err)
	}
	if _, err := e.SubmitAnswer(ctx, gameID, "p1", domain.Position{Round: 9, Question: 1}, domain.ChoiceBetray); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Errorf("bad position: got %v", err)
	}
	if _, err := e.SubmitAnswer(ctx, gameID, "stranger", domain.Position{Round: 1, Question: 1}, domain.ChoiceBetray); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("outsider: got %v", err)
	}
	if _, err := e.SubmitAnswer(ctx, "missing", "p1", domain.Position{Round: 1, Question: 1}, domain.ChoiceBetray); !errors.Is(err, domain.ErrGameNotFound) {
		t.Errorf("unknown game: got %v", err)
	}
}

// playQuestion submits both answers and advances once
func playQuestion(t *testing.T, e *Engine, gameID string) bool {
	t.Helper()
	ctx := context.Background()

	game, err := e.Get(ctx, gameID)
	if err != nil {
		t.Fatal(err)
	}
	pos := game.Position()

	if _, err := e.SubmitAnswer(ctx, gameID, "p1", pos, domain.ChoiceCooperate); err != nil {
		t.Fatalf("p1 submit at %+v: %v", pos, err)
	}
	if _, err := e.SubmitAnswer(ctx, gameID, "p2", pos, domain.ChoiceBetray); err != nil {
		t.Fatalf("p2 submit at %+v: %v", pos, err)
	}

	_, done, err := e.Advance(ctx, gameID, pos)
	if err != nil {
		t.Fatalf("advance from %+v: %v", pos, err)
	}
	return done
}

func TestFullGameRunsToCompletion(t *testing.T) {
	e, scores, stats := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)

	steps := 0
	for !playQuestion(t, e, gameID) {
		steps++
		if steps > 4 {
			t.Fatal("game did not finish after all questions")
		}
	}

	game, _ := e.Get(ctx, gameID)
	if game.Status != domain.GameStatusFinished {
		t.Fatalf("status = %q, want finished", game.Status)
	}
	// cooperate/betray every question: 4 questions of (0,5)
	if game.Scores["p1"] != 0 || game.Scores["p2"] != 20 {
		t.Errorf("final scores = %v, want p1=0 p2=20", game.Scores)
	}

	if scores.played["p1"] != 1 || scores.played["p2"] != 1 {
		t.Errorf("games played = %v, want one unit each", scores.played)
	}
	if scores.statuses["p1"] != domain.PlayerStatusOnline || scores.statuses["p2"] != domain.PlayerStatusOnline {
		t.Errorf("players not restored to lobby: %v", scores.statuses)
	}
	if len(stats.completed) != 1 {
		t.Errorf("completion recorded %d times, want 1", len(stats.completed))
	}
	if len(stats.events) != 4 {
		t.Errorf("stats saw %d question events, want 4", len(stats.events))
	}
}

// delayStore holds back one write to the game document until a
// caller-supplied interleave has run, simulating a slow totals write
// landing after later questions already resolved.
type delayStore struct {
	store.Store
	mu         sync.Mutex
	armed      bool
	gamePath   string
	interleave func()
}

func (s *delayStore) intercept(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed && path == s.gamePath {
		s.armed = false
		return true
	}
	return false
}

func (s *delayStore) SetVersioned(ctx context.Context, path string, value any, expected int64) error {
	if s.intercept(path) {
		s.interleave()
	}
	return s.Store.SetVersioned(ctx, path, value, expected)
}

func (s *delayStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if s.intercept(path) {
		s.interleave()
	}
	return s.Store.Update(ctx, path, fields)
}

func TestScoresAccumulateAcrossDelayedWrites(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hook := &delayStore{Store: store.NewMemory()}
	e := New(hook, newFakeScoreKeeper(), &fakeStats{}, &config.GameConfig{
		Rounds:            2,
		QuestionsPerRound: []int{2, 2},
	}, logger)
	ctx := context.Background()
	gameID := createGame(t, e)

	q1 := domain.Position{Round: 1, Question: 1}
	q2 := domain.Position{Round: 1, Question: 2}

	hook.mu.Lock()
	hook.gamePath = "games/" + gameID
	hook.interleave = func() {
		// The game moves on and the next question fully resolves while
		// the first totals write is still in flight
		if _, _, err := e.Advance(ctx, gameID, q1); err != nil {
			t.Errorf("advance past q1: %v", err)
		}
		if _, err := e.SubmitAnswer(ctx, gameID, "p1", q2, domain.ChoiceCooperate); err != nil {
			t.Errorf("p1 q2 submit: %v", err)
		}
		if _, err := e.SubmitAnswer(ctx, gameID, "p2", q2, domain.ChoiceCooperate); err != nil {
			t.Errorf("p2 q2 submit: %v", err)
		}
	}
	hook.armed = true
	hook.mu.Unlock()

	// q1 resolves to (5,0); its totals write is the delayed one
	if _, err := e.SubmitAnswer(ctx, gameID, "p1", q1, domain.ChoiceBetray); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SubmitAnswer(ctx, gameID, "p2", q1, domain.ChoiceCooperate); err != nil {
		t.Fatal(err)
	}

	// (5,0) from q1 plus (3,3) from q2, in whichever order the writes land
	game, err := e.Get(ctx, gameID)
	if err != nil {
		t.Fatal(err)
	}
	if game.Scores["p1"] != 8 || game.Scores["p2"] != 3 {
		t.Errorf("scores = %v, want p1=8 p2=3", game.Scores)
	}
}

func TestAdvanceConvergesForBothPlayers(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)
	pos := domain.Position{Round: 1, Question: 1}

	e.SubmitAnswer(ctx, gameID, "p1", pos, domain.ChoiceCooperate)
	e.SubmitAnswer(ctx, gameID, "p2", pos, domain.ChoiceCooperate)

	// Both clients advance independently from the same resolved position
	_, done1, err := e.Advance(ctx, gameID, pos)
	if err != nil {
		t.Fatal(err)
	}
	next2, done2, err := e.Advance(ctx, gameID, pos)
	if err != nil {
		t.Fatal(err)
	}

	if done1 || done2 {
		t.Fatal("game should not be done after one question")
	}
	if next2.Round != 1 || next2.Question != 2 {
		t.Errorf("second advance moved to %+v, want (1,2)", next2)
	}

	game, _ := e.Get(ctx, gameID)
	if game.CurrentRound != 1 || game.CurrentQuestion != 2 {
		t.Errorf("position = (%d,%d), want (1,2)", game.CurrentRound, game.CurrentQuestion)
	}
}

func TestFinishIsExactlyOnce(t *testing.T) {
	e, scores, stats := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)

	for !playQuestion(t, e, gameID) {
	}

	// A second advance on the finished game must not double-count
	_, done, err := e.Advance(ctx, gameID, domain.Position{Round: 2, Question: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("finished game should stay done")
	}
	if scores.played["p1"] != 1 {
		t.Errorf("games played = %d, want 1", scores.played["p1"])
	}
	if len(stats.completed) != 1 {
		t.Errorf("completion recorded %d times, want 1", len(stats.completed))
	}
}

func TestRoundResults(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)
	pos := domain.Position{Round: 1, Question: 1}

	e.SubmitAnswer(ctx, gameID, "p1", pos, domain.ChoiceBetray)
	e.SubmitAnswer(ctx, gameID, "p2", pos, domain.ChoiceBetray)

	results, err := e.RoundResults(ctx, gameID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("round has %d results, want 1", len(results))
	}
	if results[1].Kind != domain.ResultBetrayBetray {
		t.Errorf("kind = %q", results[1].Kind)
	}

	if _, err := e.RoundResults(ctx, gameID, 9); !errors.Is(err, domain.ErrInvalidPosition) {
		t.Errorf("out-of-range round: got %v", err)
	}
}

func TestHistory(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	gameID := createGame(t, e)

	for !playQuestion(t, e, gameID) {
	}

	entries, err := e.History(ctx, "p2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.GameID != gameID {
		t.Errorf("game id = %q", entry.GameID)
	}
	if entry.OpponentName != "alice" {
		t.Errorf("opponent = %q, want alice", entry.OpponentName)
	}
	if entry.Outcome != "win" {
		t.Errorf("outcome = %q, want win", entry.Outcome)
	}
	if entry.PlayerScore != 20 || entry.OpponentScore != 0 {
		t.Errorf("scores = (%d,%d)", entry.PlayerScore, entry.OpponentScore)
	}

	// The other side sees the mirror image
	entries, _ = e.History(ctx, "p1", 10)
	if entries[0].Outcome != "lose" {
		t.Errorf("p1 outcome = %q, want lose", entries[0].Outcome)
	}
}
