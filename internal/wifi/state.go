package wifi

import "fmt"

// State is the connectivity state of the device.
type State int

const (
	Disconnected State = iota
	Connecting
	Associated
	ProvisioningMode
	Failed
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Associated:
		return "associated"
	case ProvisioningMode:
		return "provisioning"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RadioEventKind identifies a raw radio event.
type RadioEventKind int

const (
	StationStarted RadioEventKind = iota
	StationDisconnected
	GotIP
)

// String returns a human-readable name for the event kind
func (k RadioEventKind) String() string {
	switch k {
	case StationStarted:
		return "station_started"
	case StationDisconnected:
		return "station_disconnected"
	case GotIP:
		return "got_ip"
	default:
		return fmt.Sprintf("RadioEventKind(%d)", int(k))
	}
}

// RadioEvent is posted by a Radio. Address is set for GotIP only.
type RadioEvent struct {
	Kind    RadioEventKind
	Address string
}

// EventKind identifies a connectivity event delivered to listeners.
type EventKind int

const (
	EventAssociated EventKind = iota
	EventDisassociated
)

// String returns a human-readable name for the event kind
func (k EventKind) String() string {
	if k == EventAssociated {
		return "associated"
	}
	return "disassociated"
}

// Event is a connectivity change. Address is the obtained address for
// EventAssociated and empty otherwise.
type Event struct {
	Kind    EventKind
	Address string
}

// Listener receives connectivity events on the manager's loop goroutine.
type Listener interface {
	HandleConnectivity(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

// HandleConnectivity calls f.
func (f ListenerFunc) HandleConnectivity(ev Event) {
	f(ev)
}
