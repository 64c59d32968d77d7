package connectivity

import "strconv"

// State is the node's position in the broker connection lifecycle.
type State int

const (
	// Init: the transport engine has not been registered yet.
	Init State = iota
	// EngineReady: a session exists but the network is not usable.
	EngineReady
	// NetworkReady: the broker looks reachable, no connect submitted.
	NetworkReady
	// Connecting: a connect request is outstanding.
	Connecting
	// Connected: the broker accepted the session.
	Connected
	// Subscribed: the correlation topic subscription was acknowledged.
	Subscribed
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case EngineReady:
		return "engine_ready"
	case NetworkReady:
		return "network_ready"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// rank orders the states along the lifecycle. Unknown states rank below Init.
func (s State) rank() int {
	switch s {
	case Init:
		return 0
	case EngineReady:
		return 1
	case NetworkReady:
		return 2
	case Connecting:
		return 3
	case Connected:
		return 4
	case Subscribed:
		return 5
	default:
		return -1
	}
}

// AtLeast reports whether s is o or a later lifecycle state.
func (s State) AtLeast(o State) bool {
	return s.rank() >= 0 && s.rank() >= o.rank()
}

// Online reports whether the broker has accepted the session.
func (s State) Online() bool { return s.AtLeast(Connected) }
