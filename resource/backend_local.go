package resource

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrClosed = errors.New("resource backend closed")
	ErrPinned = errors.New("resource still pinned")
)

// LocalBackend is an in-memory backend with pin tracking.
type LocalBackend struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value any
	label string
	pins  uint32
	kind  Kind
	valid bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 32),
		freeList: make([]Handle, 0, 8),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(kind Kind, label string, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{
		kind:  kind,
		label: label,
		value: value,
		valid: true,
	}

	if len(b.freeList) > 0 {
		handle := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[handle-1] = e
		return handle, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// lookup returns the live entry for handle. Callers hold b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 || int(handle-1) >= len(b.entries) {
		return nil
	}
	e := &b.entries[handle-1]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Info returns the kind and label of a live entry.
func (b *LocalBackend) Info(handle Handle) (Kind, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, "", false
	}
	return e.kind, e.label, true
}

// Drop removes an entry and returns (value, true) if its destructor should be called.
func (b *LocalBackend) Drop(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.pins > 0 {
		return nil, false
	}

	value := e.value
	*e = entry{}
	b.freeList = append(b.freeList, handle)

	return value, true
}

// Pin increments the pin count for a handle.
func (b *LocalBackend) Pin(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return false
	}
	e.pins++
	return true
}

// Unpin decrements the pin count for a handle.
func (b *LocalBackend) Unpin(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.pins == 0 {
		return false
	}
	e.pins--
	return true
}

// Pins returns the pin count for a handle.
func (b *LocalBackend) Pins(handle Handle) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e := b.lookup(handle); e != nil {
		return e.pins
	}
	return 0
}

// Close drops every entry, calling Drop on values that implement Dropper.
// Entries that were still pinned are dropped too and reported as ErrPinned.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var droppers []Dropper
	pinned := 0
	for i := range b.entries {
		e := &b.entries[i]
		if !e.valid {
			continue
		}
		if e.pins > 0 {
			pinned++
		}
		if d, ok := e.value.(Dropper); ok {
			droppers = append(droppers, d)
		}
		*e = entry{}
	}
	b.entries = nil
	b.freeList = nil
	b.mu.Unlock()

	// Destructors run unlocked so they may inspect the table.
	for _, d := range droppers {
		d.Drop()
	}
	if pinned > 0 {
		return fmt.Errorf("%w: %d entries", ErrPinned, pinned)
	}
	return nil
}

// Len returns the number of live entries.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live entries.
func (b *LocalBackend) Each(fn func(h Handle, kind Kind, label string, value any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Handle(i+1), e.kind, e.label, e.value) {
				break
			}
		}
	}
}

