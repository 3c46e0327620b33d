package event

// Kind classifies a participant by its role in the protocol.
type Kind string

const (
	KindUnknown Kind = "unknown"
	KindClient  Kind = "client"
	KindBackend Kind = "backend"
)

// Participant identifies an entity capable of initiating changes: a connected
// client or the backend itself. A participant is created once and never
// mutated.
type Participant struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Is reports whether both participants identify the same entity. The display
// name carries no identity.
func (p Participant) Is(other Participant) bool {
	return p.Kind == other.Kind && p.ID == other.ID
}

func (p Participant) String() string {
	switch p.Kind {
	case KindClient:
		return "C-" + p.ID
	case KindBackend:
		return "B-" + p.ID
	default:
		return "?-" + p.ID
	}
}

// Description returns a human-readable form for log output.
func (p Participant) Description() string {
	switch p.Kind {
	case KindClient:
		return "client '" + p.Name + "'"
	case KindBackend:
		return "backend process '" + p.Name + "'"
	default:
		return "?"
	}
}
