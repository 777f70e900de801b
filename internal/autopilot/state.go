package autopilot

import "github.com/rotisserie/eris"

// State is a step of an auto-pilot run.
type State string

const (
	StateIdle        State = "idle"
	StateSearching   State = "searching"
	StateEnriching   State = "enriching"
	StateScoring     State = "scoring"
	StateFiltering   State = "filtering"
	StatePersisting  State = "persisting"
	StateCampaigning State = "campaigning"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

var stateOrder = map[State]int{
	StateIdle:        0,
	StateSearching:   1,
	StateEnriching:   2,
	StateScoring:     3,
	StateFiltering:   4,
	StatePersisting:  5,
	StateCampaigning: 6,
	StateDone:        7,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// machine tracks the state of one run. Steps may be skipped but never
// revisited; failed is reachable from any non-terminal state.
type machine struct {
	state   State
	onEnter func(State)
}

func newMachine(onEnter func(State)) *machine {
	return &machine{state: StateIdle, onEnter: onEnter}
}

func (m *machine) advance(to State) error {
	if m.state.Terminal() {
		return eris.Errorf("autopilot: transition %s -> %s from terminal state", m.state, to)
	}
	if to != StateFailed {
		next, ok := stateOrder[to]
		if !ok || next <= stateOrder[m.state] {
			return eris.Errorf("autopilot: illegal transition %s -> %s", m.state, to)
		}
	}
	m.state = to
	if m.onEnter != nil {
		m.onEnter(to)
	}
	return nil
}
