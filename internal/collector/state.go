package collector

// State is a phase of the collector loop.
type State int

const (
	StateAwaitingConnection State = iota
	StateHandshaking
	StateReceiving
	StateDecoding
	StatePublishing
	StateTerminated
)

var stateNames = [...]string{
	StateAwaitingConnection: "awaiting_connection",
	StateHandshaking:        "handshaking",
	StateReceiving:          "receiving",
	StateDecoding:           "decoding",
	StatePublishing:         "publishing",
	StateTerminated:         "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// transitions lists the legal successors of each state. Handshaking and
// Receiving fall back to AwaitingConnection when the probe disconnects;
// Decoding does so under MalformedDropConnection and returns to Receiving
// under MalformedDropRecord.
var transitions = map[State][]State{
	StateAwaitingConnection: {StateHandshaking, StateTerminated},
	StateHandshaking:        {StateReceiving, StateAwaitingConnection, StateTerminated},
	StateReceiving:          {StateDecoding, StateAwaitingConnection, StateTerminated},
	StateDecoding:           {StatePublishing, StateReceiving, StateAwaitingConnection, StateTerminated},
	StatePublishing:         {StateReceiving, StateTerminated},
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
