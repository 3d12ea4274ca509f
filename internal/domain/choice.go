package domain

import "fmt"

// Choice is one of the two moves in a dilemma question
type Choice string

const (
	ChoiceCooperate Choice = "cooperate"
	ChoiceBetray    Choice = "betray"
)

// ParseChoice validates raw input against the closed enum. Anything else
// fails validation instead of being coerced.
func ParseChoice(s string) (Choice, error) {
	switch Choice(s) {
	case ChoiceCooperate, ChoiceBetray:
		return Choice(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
}

// Valid reports whether the choice is a member of the enum
func (c Choice) Valid() bool {
	return c == ChoiceCooperate || c == ChoiceBetray
}

// ResultKind labels the outcome of a choice pair
type ResultKind string

const (
	ResultCooperateCooperate ResultKind = "cooperate_cooperate"
	ResultCooperateBetray    ResultKind = "cooperate_betray"
	ResultBetrayCooperate    ResultKind = "betray_cooperate"
	ResultBetrayBetray       ResultKind = "betray_betray"
)

// Payoff applies the dilemma matrix to a pair of choices:
//
//	cooperate/cooperate -> (3,3)
//	cooperate/betray    -> (0,5)
//	betray/cooperate    -> (5,0)
//	betray/betray       -> (1,1)
//
// A pair outside the enum is only possible through data corruption and
// fails fast.
func Payoff(a, b Choice) (int64, int64, ResultKind, error) {
	switch {
	case a == ChoiceCooperate && b == ChoiceCooperate:
		return 3, 3, ResultCooperateCooperate, nil
	case a == ChoiceCooperate && b == ChoiceBetray:
		return 0, 5, ResultCooperateBetray, nil
	case a == ChoiceBetray && b == ChoiceCooperate:
		return 5, 0, ResultBetrayCooperate, nil
	case a == ChoiceBetray && b == ChoiceBetray:
		return 1, 1, ResultBetrayBetray, nil
	default:
		return 0, 0, "", fmt.Errorf("%w: %q vs %q", ErrInvalidChoice, a, b)
	}
}
