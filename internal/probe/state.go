package probe

// State is a phase of the probe loop.
type State int

const (
	StateConnecting State = iota
	StateHandshaking
	StateMeasuring
	StateSending
	StateSleeping
	StateTerminated
)

var stateNames = [...]string{
	StateConnecting:  "connecting",
	StateHandshaking: "handshaking",
	StateMeasuring:   "measuring",
	StateSending:     "sending",
	StateSleeping:    "sleeping",
	StateTerminated:  "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// transitions lists the legal successors of each state. Terminated is
// reachable from every live state and has no successors.
var transitions = map[State][]State{
	StateConnecting:  {StateHandshaking, StateTerminated},
	StateHandshaking: {StateMeasuring, StateTerminated},
	StateMeasuring:   {StateSending, StateTerminated},
	StateSending:     {StateSleeping, StateTerminated},
	StateSleeping:    {StateMeasuring, StateTerminated},
}

// CanTransition reports whether the loop may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
