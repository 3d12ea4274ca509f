package domain

import "time"

// GameStatus represents the game lifecycle state
type GameStatus string

const (
	GameStatusWaiting  GameStatus = "waiting"
	GameStatusPlaying  GameStatus = "playing"
	GameStatusFinished GameStatus = "finished"
)

// GameSettings fixes the round structure for a game. Both clients derive
// the advancement sequence from these counts alone, so they must be
// written once at creation and never change.
type GameSettings struct {
	Rounds            int   `json:"rounds"`
	QuestionsPerRound []int `json:"questions_per_round"`
}

// TotalQuestions returns the number of questions across all rounds
func (s GameSettings) TotalQuestions() int {
	total := 0
	for _, n := range s.QuestionsPerRound {
		total += n
	}
	return total
}

// Position is a 1-based (round, question) index into a game
type Position struct {
	Round    int `json:"round"`
	Question int `json:"question"`
}

// Next computes the position after pos for the given settings. It is a
// deterministic function of the counts so two clients advancing
// independently from the same observed position reach the same state.
// done is true once pos is the last question of the last round.
func (s GameSettings) Next(pos Position) (next Position, done bool) {
	if pos.Round < 1 || pos.Round > s.Rounds {
		return pos, true
	}
	if pos.Question < s.QuestionsPerRound[pos.Round-1] {
		return Position{Round: pos.Round, Question: pos.Question + 1}, false
	}
	if pos.Round < s.Rounds {
		return Position{Round: pos.Round + 1, Question: 1}, false
	}
	return pos, true
}

// Valid reports whether pos addresses an existing question
func (s GameSettings) Valid(pos Position) bool {
	if pos.Round < 1 || pos.Round > s.Rounds {
		return false
	}
	return pos.Question >= 1 && pos.Question <= s.QuestionsPerRound[pos.Round-1]
}

// Answer is a single player's recorded choice for a question
type Answer struct {
	Choice      Choice    `json:"choice"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// QuestionResult is derived from the pair of answers and written once,
// when the second answer lands
type QuestionResult struct {
	Player1ID    string     `json:"player1_id"`
	Player2ID    string     `json:"player2_id"`
	Player1Score int64      `json:"player1_score"`
	Player2Score int64      `json:"player2_score"`
	Kind         ResultKind `json:"kind"`
	ResolvedAt   time.Time  `json:"resolved_at"`
}

// Question is one dilemma cell inside a round
type Question struct {
	Text    string            `json:"text"`
	Context string            `json:"context,omitempty"`
	Answers map[string]Answer `json:"answers,omitempty"`
	Result  *QuestionResult   `json:"result,omitempty"`
}

// Round groups the questions of one round, keyed by 1-based question number
type Round struct {
	Questions map[string]Question `json:"questions"`
}

// Game is an active dilemma match between exactly two players
type Game struct {
	ID              string           `json:"id"`
	Player1ID       string           `json:"player1_id"`
	Player1Name     string           `json:"player1_name"`
	Player2ID       string           `json:"player2_id"`
	Player2Name     string           `json:"player2_name"`
	CurrentRound    int              `json:"current_round"`
	CurrentQuestion int              `json:"current_question"`
	Status          GameStatus       `json:"status"`
	Settings        GameSettings     `json:"settings"`
	Scores          map[string]int64 `json:"scores"`
	CreatedAt       time.Time        `json:"created_at"`
}

// OpponentOf returns the other participant's id
func (g *Game) OpponentOf(playerID string) string {
	if playerID == g.Player1ID {
		return g.Player2ID
	}
	return g.Player1ID
}

// Position returns the game's current (round, question) index
func (g *Game) Position() Position {
	return Position{Round: g.CurrentRound, Question: g.CurrentQuestion}
}

// ResultEvent is the record emitted when a question resolves, consumed by
// the stats pipeline
type ResultEvent struct {
	GameID       string     `json:"game_id"`
	Round        int        `json:"round"`
	Question     int        `json:"question"`
	Player1ID    string     `json:"player1_id"`
	Player2ID    string     `json:"player2_id"`
	Player1Score int64      `json:"player1_score"`
	Player2Score int64      `json:"player2_score"`
	Kind         ResultKind `json:"kind"`
	Timestamp    time.Time  `json:"timestamp"`
}

// GameSummary is the terminal aggregation shown when a game finishes
type GameSummary struct {
	GameID      string           `json:"game_id"`
	Player1ID   string           `json:"player1_id"`
	Player2ID   string           `json:"player2_id"`
	Player1Name string           `json:"player1_name"`
	Player2Name string           `json:"player2_name"`
	Scores      map[string]int64 `json:"scores"`
	Status      GameStatus       `json:"status"`
}

// GameHistoryEntry is one row of a player's completed-game history
type GameHistoryEntry struct {
	GameID        string    `json:"game_id"`
	OpponentName  string    `json:"opponent_name"`
	PlayerScore   int64     `json:"player_score"`
	OpponentScore int64     `json:"opponent_score"`
	Outcome       string    `json:"outcome"`
	PlayedAt      time.Time `json:"played_at"`
}
