package resource

// Handle is an opaque reference to an entry in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tags what an entry holds.
type Kind uint8

const (
	KindClosure Kind = iota + 1 // user closure
	KindAdapter                 // engine-facing adapter around a closure
)

func (k Kind) String() string {
	switch k {
	case KindClosure:
		return "closure"
	case KindAdapter:
		return "adapter"
	default:
		return "unknown"
	}
}

// Event types for entry lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventPinned
	EventUnpinned
)

// Event represents an entry lifecycle event.
type Event struct {
	Value  any
	Label  string
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about entry lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage for entries.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(kind Kind, label string, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes an entry and returns (value, true) if its destructor
	// should be called. Returns (nil, false) if the handle is invalid or
	// the entry is pinned.
	Drop(handle Handle) (any, bool)

	// Pin marks an entry as referenced from outside the table, typically
	// from a native slot. Pinned entries cannot be dropped individually.
	Pin(handle Handle) bool

	// Unpin removes one pin.
	Unpin(handle Handle) bool

	// Close drops every entry.
	Close() error
}

// Table manages entries with kind information and observer support.
type Table interface {
	Insert(kind Kind, label string, value any) Handle
	Get(handle Handle) (any, bool)
	Remove(handle Handle) (any, bool)
	Pin(handle Handle) bool
	Unpin(handle Handle) bool
	Subscribe(Observer)
	Unsubscribe(Observer)
	Pinned(handle Handle) bool
	Len() int
	Close() error
}

// Dropper is implemented by values that need cleanup. The table calls Drop
// exactly once, when the entry leaves the table.
type Dropper interface {
	Drop()
}
