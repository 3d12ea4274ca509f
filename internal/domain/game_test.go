package domain

import (
	"testing"
	"time"
)

func TestNextWalksEveryQuestionOnce(t *testing.T) {
	settings := GameSettings{Rounds: 3, QuestionsPerRound: []int{10, 10, 13}}

	pos := Position{Round: 1, Question: 1}
	visited := 1
	for {
		next, done := settings.Next(pos)
		if done {
			break
		}
		pos = next
		visited++
		if visited > settings.TotalQuestions() {
			t.Fatalf("advancement looped past %d questions", settings.TotalQuestions())
		}
	}

	if visited != settings.TotalQuestions() {
		t.Errorf("visited %d questions, want %d", visited, settings.TotalQuestions())
	}
	if pos.Round != 3 || pos.Question != 13 {
		t.Errorf("final position = %+v, want round 3 question 13", pos)
	}
}

func TestNextCrossesRoundBoundary(t *testing.T) {
	settings := GameSettings{Rounds: 2, QuestionsPerRound: []int{2, 2}}

	next, done := settings.Next(Position{Round: 1, Question: 2})
	if done {
		t.Fatal("round boundary should not finish the game")
	}
	if next.Round != 2 || next.Question != 1 {
		t.Errorf("next = %+v, want round 2 question 1", next)
	}
}

func TestNextDoneOnLastQuestion(t *testing.T) {
	settings := GameSettings{Rounds: 2, QuestionsPerRound: []int{2, 2}}

	_, done := settings.Next(Position{Round: 2, Question: 2})
	if !done {
		t.Error("last question of last round should report done")
	}
}

func TestValidBounds(t *testing.T) {
	settings := GameSettings{Rounds: 3, QuestionsPerRound: []int{10, 10, 13}}

	valid := []Position{{1, 1}, {1, 10}, {2, 5}, {3, 13}}
	for _, pos := range valid {
		if !settings.Valid(pos) {
			t.Errorf("%+v should be valid", pos)
		}
	}

	invalid := []Position{{0, 1}, {1, 0}, {1, 11}, {3, 14}, {4, 1}, {-1, -1}}
	for _, pos := range invalid {
		if settings.Valid(pos) {
			t.Errorf("%+v should be invalid", pos)
		}
	}
}

func TestOpponentOf(t *testing.T) {
	g := Game{Player1ID: "a", Player2ID: "b"}
	if g.OpponentOf("a") != "b" {
		t.Error("opponent of a should be b")
	}
	if g.OpponentOf("b") != "a" {
		t.Error("opponent of b should be a")
	}
}

func TestPlayerLive(t *testing.T) {
	now := time.Now()
	ttl := 30 * time.Second

	p := Player{IsOnline: true, LastPing: now.Add(-10 * time.Second)}
	if !p.Live(now, ttl) {
		t.Error("recent heartbeat should count as live")
	}

	p.LastPing = now.Add(-31 * time.Second)
	if p.Live(now, ttl) {
		t.Error("lapsed heartbeat should not count as live")
	}

	p.LastPing = now
	p.IsOnline = false
	if p.Live(now, ttl) {
		t.Error("offline flag should override a fresh heartbeat")
	}
}
