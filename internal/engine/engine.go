// Package engine holds the pure rules of a trivia lobby: its lifecycle
// states, round scoring and final standings. It owns no goroutines; the
// lobby actor applies these rules to its own state.
package engine

import (
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal state transition")

// PointsPerAnswer is awarded for every correct answer.
const PointsPerAnswer = 100

type State int

const (
	StateArranging State = iota
	StateActive
	StateDead
)

func (s State) String() string {
	switch s {
	case StateArranging:
		return "arranging"
	case StateActive:
		return "active"
	case StateDead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition moves s to next. States only move forward; Dead may be reached
// from any earlier state.
func Transition(s, next State) (State, error) {
	switch {
	case s == StateArranging && next == StateActive,
		s != StateDead && next == StateDead:
		return next, nil
	default:
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
	}
}

type Mode string

const (
	ModeSolo  Mode = "solo"
	ModeParty Mode = "party"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSolo, ModeParty:
		return Mode(s), true
	default:
		return "", false
	}
}
