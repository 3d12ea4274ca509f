package domain

import (
	"errors"
	"testing"
)

func TestPayoffMatrix(t *testing.T) {
	cases := []struct {
		a, b     Choice
		s1, s2   int64
		kind     ResultKind
	}{
		{ChoiceCooperate, ChoiceCooperate, 3, 3, ResultCooperateCooperate},
		{ChoiceCooperate, ChoiceBetray, 0, 5, ResultCooperateBetray},
		{ChoiceBetray, ChoiceCooperate, 5, 0, ResultBetrayCooperate},
		{ChoiceBetray, ChoiceBetray, 1, 1, ResultBetrayBetray},
	}

	for _, tc := range cases {
		s1, s2, kind, err := Payoff(tc.a, tc.b)
		if err != nil {
			t.Fatalf("Payoff(%s,%s) returned error: %v", tc.a, tc.b, err)
		}
		if s1 != tc.s1 || s2 != tc.s2 {
			t.Errorf("Payoff(%s,%s) = (%d,%d), want (%d,%d)", tc.a, tc.b, s1, s2, tc.s1, tc.s2)
		}
		if kind != tc.kind {
			t.Errorf("Payoff(%s,%s) kind = %s, want %s", tc.a, tc.b, kind, tc.kind)
		}
	}
}

func TestPayoffSwapSymmetry(t *testing.T) {
	for _, a := range []Choice{ChoiceCooperate, ChoiceBetray} {
		for _, b := range []Choice{ChoiceCooperate, ChoiceBetray} {
			s1, s2, _, err := Payoff(a, b)
			if err != nil {
				t.Fatalf("Payoff(%s,%s): %v", a, b, err)
			}
			r1, r2, _, err := Payoff(b, a)
			if err != nil {
				t.Fatalf("Payoff(%s,%s): %v", b, a, err)
			}
			if s1 != r2 || s2 != r1 {
				t.Errorf("swapping (%s,%s) broke symmetry: (%d,%d) vs (%d,%d)", a, b, s1, s2, r1, r2)
			}
		}
	}
}

func TestPayoffRejectsCorruptChoice(t *testing.T) {
	_, _, _, err := Payoff("maybe", ChoiceBetray)
	if !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
}

func TestParseChoice(t *testing.T) {
	if _, err := ParseChoice("cooperate"); err != nil {
		t.Errorf("cooperate should parse: %v", err)
	}
	if _, err := ParseChoice("betray"); err != nil {
		t.Errorf("betray should parse: %v", err)
	}
	for _, bad := range []string{"", "Cooperate", "defect", "both"} {
		if _, err := ParseChoice(bad); !errors.Is(err, ErrInvalidChoice) {
			t.Errorf("ParseChoice(%q) should fail with ErrInvalidChoice, got %v", bad, err)
		}
	}
}
