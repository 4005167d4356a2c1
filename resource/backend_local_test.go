package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	handle, err := b.Create(KindClosure, "bang", "test value")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := b.Get(handle)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	kind, label, ok := b.Info(handle)
	if !ok || kind != KindClosure || label != "bang" {
		t.Fatalf("Info = %v %q %v", kind, label, ok)
	}

	val, ok = b.Drop(handle)
	if !ok {
		t.Fatal("Drop failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, ok = b.Get(handle); ok {
		t.Fatal("Expected Get to fail after Drop")
	}
	if _, ok = b.Drop(handle); ok {
		t.Fatal("Second Drop should fail")
	}
}

func TestLocalBackend_Pin(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(KindAdapter, "list", 100)

	if !b.Pin(handle) {
		t.Fatal("Pin failed")
	}

	// Cannot drop while pinned
	if _, ok := b.Drop(handle); ok {
		t.Fatal("Drop should fail while pinned")
	}

	if !b.Unpin(handle) {
		t.Fatal("Unpin failed")
	}
	if b.Unpin(handle) {
		t.Fatal("Unpin below zero should fail")
	}

	if _, ok := b.Drop(handle); !ok {
		t.Fatal("Drop should succeed after Unpin")
	}
}

func TestLocalBackend_MultiplePins(t *testing.T) {
	b := NewLocalBackend()

	handle, _ := b.Create(KindAdapter, "float", 100)

	for i := 0; i < 5; i++ {
		if !b.Pin(handle) {
			t.Fatalf("Pin %d failed", i)
		}
	}
	if got := b.Pins(handle); got != 5 {
		t.Fatalf("Expected 5 pins, got %d", got)
	}

	if _, ok := b.Drop(handle); ok {
		t.Fatal("Drop should fail with outstanding pins")
	}

	for i := 0; i < 5; i++ {
		if !b.Unpin(handle) {
			t.Fatalf("Unpin %d failed", i)
		}
	}

	if _, ok := b.Drop(handle); !ok {
		t.Fatal("Drop should succeed after removing all pins")
	}
}

func TestLocalBackend_HandleReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Create(KindClosure, "", 1)
	h2, _ := b.Create(KindClosure, "", 2)
	h3, _ := b.Create(KindClosure, "", 3)

	b.Drop(h2)
	b.Drop(h1)

	h4, _ := b.Create(KindClosure, "", 4)
	h5, _ := b.Create(KindClosure, "", 5)

	if h4 != h1 || h5 != h2 {
		t.Fatalf("Expected freed handles to be reused LIFO, got %d %d", h4, h5)
	}

	for _, h := range []Handle{h3, h4, h5} {
		if _, ok := b.Get(h); !ok {
			t.Fatalf("handle %d should be valid", h)
		}
	}
	if v, _ := b.Get(h4); v != 4 {
		t.Fatalf("Reused handle returned stale value %v", v)
	}
}

type countingDropper struct {
	n *int
}

func (d countingDropper) Drop() { *d.n++ }

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()

	var drops int
	b.Create(KindClosure, "", countingDropper{&drops})
	b.Create(KindAdapter, "", countingDropper{&drops})

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if drops != 2 {
		t.Fatalf("Expected 2 drops, got %d", drops)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if drops != 2 {
		t.Fatalf("Second Close dropped again: %d", drops)
	}

	_, err := b.Create(KindClosure, "", "test")
	if !errors.Is(err, ErrClosed) {
		t.Fatal("Expected ErrClosed after Close")
	}
}

func TestLocalBackend_ClosePinned(t *testing.T) {
	b := NewLocalBackend()

	var drops int
	h, _ := b.Create(KindAdapter, "", countingDropper{&drops})
	b.Pin(h)

	err := b.Close()
	if !errors.Is(err, ErrPinned) {
		t.Fatalf("Expected ErrPinned, got %v", err)
	}
	if drops != 1 {
		t.Fatalf("Pinned entry should still be dropped once, got %d", drops)
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Create(KindClosure, "", id)
			b.Pin(h)
			b.Unpin(h)
			b.Drop(h)
		}(i)
	}

	wg.Wait()
	if b.Len() != 0 {
		t.Fatalf("Expected empty backend, got %d", b.Len())
	}
}

func TestLocalBackend_Len(t *testing.T) {
	b := NewLocalBackend()

	if b.Len() != 0 {
		t.Fatal("Expected Len() == 0 initially")
	}

	h1, _ := b.Create(KindClosure, "", "a")
	h2, _ := b.Create(KindClosure, "", "b")
	b.Create(KindClosure, "", "c")

	if b.Len() != 3 {
		t.Fatalf("Expected Len() == 3, got %d", b.Len())
	}

	b.Drop(h1)
	if b.Len() != 2 {
		t.Fatalf("Expected Len() == 2, got %d", b.Len())
	}

	b.Drop(h2)
	if b.Len() != 1 {
		t.Fatalf("Expected Len() == 1, got %d", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()

	b.Create(KindClosure, "a", "a")
	b.Create(KindAdapter, "b", "b")
	b.Create(KindClosure, "c", "c")

	var labels []string
	b.Each(func(_ Handle, _ Kind, label string, _ any) bool {
		labels = append(labels, label)
		return true
	})

	if len(labels) != 3 || labels[0] != "a" || labels[2] != "c" {
		t.Fatalf("Unexpected iteration: %v", labels)
	}

	count := 0
	b.Each(func(Handle, Kind, string, any) bool {
		count++
		return false
	})

	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidHandle(t *testing.T) {
	b := NewLocalBackend()

	// Handle 0 is always invalid
	if _, ok := b.Get(0); ok {
		t.Fatal("Handle 0 should be invalid")
	}
	if _, _, ok := b.Info(0); ok {
		t.Fatal("Handle 0 should be invalid for Info")
	}
	if b.Pin(0) {
		t.Fatal("Handle 0 should fail Pin")
	}
	if b.Unpin(0) {
		t.Fatal("Handle 0 should fail Unpin")
	}
	if _, ok := b.Drop(0); ok {
		t.Fatal("Handle 0 should fail Drop")
	}

	if _, ok := b.Get(999); ok {
		t.Fatal("Non-existent handle should be invalid")
	}
}
