package resource

import (
	"sync"
)

// UnifiedTable implements the Table interface using a LocalBackend for storage.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

var _ Table = (*UnifiedTable)(nil)

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return &UnifiedTable{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle. It returns 0 once the table
// is closed.
func (t *UnifiedTable) Insert(kind Kind, label string, value any) Handle {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(kind, label, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Kind:   kind,
		Label:  label,
		Value:  value,
	})

	return handle
}

// Get retrieves a value by handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// Remove drops an unpinned entry, runs its destructor and returns
// (value, true) if found.
func (t *UnifiedTable) Remove(handle Handle) (any, bool) {
	kind, label, _ := t.backend.Info(handle)
	value, ok := t.backend.Drop(handle)
	if !ok {
		return nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Kind:   kind,
		Label:  label,
		Value:  value,
	})

	return value, true
}

// Pin marks the entry as referenced from outside the table.
func (t *UnifiedTable) Pin(handle Handle) bool {
	return t.pinEvent(handle, EventPinned, t.backend.Pin)
}

// Unpin releases one outside reference.
func (t *UnifiedTable) Unpin(handle Handle) bool {
	return t.pinEvent(handle, EventUnpinned, t.backend.Unpin)
}

func (t *UnifiedTable) pinEvent(handle Handle, typ EventType, op func(Handle) bool) bool {
	kind, label, _ := t.backend.Info(handle)
	if !op(handle) {
		return false
	}
	t.notify(Event{Type: typ, Handle: handle, Kind: kind, Label: label})
	return true
}

// Pinned reports whether the entry has outside references.
func (t *UnifiedTable) Pinned(handle Handle) bool {
	return t.backend.Pins(handle) > 0
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live entries.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Close drops every entry exactly once and stops accepting inserts.
// Observers see one EventDropped per entry. A non-nil error reports
// entries that were still pinned; they are dropped regardless.
func (t *UnifiedTable) Close() error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()

	var events []Event
	t.backend.Each(func(h Handle, kind Kind, label string, value any) bool {
		events = append(events, Event{Type: EventDropped, Handle: h, Kind: kind, Label: label, Value: value})
		return true
	})

	err := t.backend.Close()
	for _, e := range events {
		t.notify(e)
	}
	return err
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
