package estimate

import (
	"fmt"

	"github.com/scottschroeder/storyestimate/internal/apperr"
)

// State is the session-level phase of the estimation round.
type State int

const (
	StateClean State = iota
	StateVoting
	StateVisible
)

var stateNames = [...]string{
	StateClean:   "Clean",
	StateVoting:  "Voting",
	StateVisible: "Visible",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState resolves a state name. Only Clean, Voting and Visible are legal.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, apperr.BadRequest("can not set session to state %q", name)
}

func (s State) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("invalid session state %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// VoteState is how a member's vote is presented to readers.
type VoteState int

const (
	VoteEmpty VoteState = iota
	VoteHidden
	VoteVisible
)

func (v VoteState) String() string {
	switch v {
	case VoteHidden:
		return "Hidden"
	case VoteVisible:
		return "Visible"
	default:
		return "Empty"
	}
}

func (v VoteState) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
