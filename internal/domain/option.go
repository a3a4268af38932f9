package domain

import "fmt"

// Option is an answer option letter as stored in the questions table.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// OptionLetters is the full option alphabet in display order.
var OptionLetters = []Option{OptionA, OptionB, OptionC, OptionD}

// ParseOption validates a client-supplied option letter.
func ParseOption(raw string) (Option, error) {
	switch Option(raw) {
	case OptionA, OptionB, OptionC, OptionD:
		return Option(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOption, raw)
}

// Score is the scoring oracle: a submission is correct iff an option was
// selected and it equals the canonical correct option. Client-declared
// correctness is never consulted.
func Score(selected *Option, correct Option) bool {
	return selected != nil && *selected == correct
}
