package lifecycle

import "fmt"

// State is a transaction lifecycle state.
type State string

const (
	Preflight State = "preflight"
	Simulated State = "simulated"
	Estimated State = "estimated"
	Sent      State = "sent"
	Mining    State = "mining"
	Confirmed State = "confirmed"
	Failed    State = "failed"
	Cancelled State = "cancelled"
	// Pending is reported to the caller when mining outlasts the timeout; a
	// follow-up watcher later promotes it to Confirmed or Failed.
	Pending State = "pending"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == Confirmed || s == Failed || s == Cancelled
}

// transitions is the allowed state graph.
var transitions = map[State][]State{
	Preflight: {Simulated, Failed},
	Simulated: {Estimated},
	Estimated: {Sent, Cancelled, Failed},
	Sent:      {Mining},
	Mining:    {Confirmed, Failed, Pending},
	Pending:   {Confirmed, Failed},
}

// CanTransition reports whether from → to is an edge of the state graph.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError is an attempted move outside the state graph.
type TransitionError struct {
	RecordID string
	From     State
	To       State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle %s: invalid transition %s -> %s", e.RecordID, e.From, e.To)
}
