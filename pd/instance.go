package pd

import (
	"runtime"
	"sync/atomic"

	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
)

var instanceNumbers atomic.Int32

// Instance is one engine context. The main instance exists for the life of
// the process; other instances are created with NewInstance and freed with
// Close.
//
// Closing an instance that is still current on some thread leaves that
// thread pointing at freed state. Callers must not do this.
type Instance struct {
	eng    engine.Engine
	handle engine.Handle
	number int32
	main   bool
	closed atomic.Bool
}

// NewInstance allocates and registers a new engine context. The calling
// thread's current instance is not changed.
func NewInstance(eng engine.Engine) (*Instance, error) {
	h, err := eng.NewInstance()
	if err != nil {
		return nil, errors.Initialization("create engine instance", err)
	}
	if h == engine.NoInstance {
		return nil, errors.Initialization("engine returned no instance", nil)
	}
	return &Instance{
		eng:    eng,
		handle: h,
		number: instanceNumbers.Add(1),
	}, nil
}

// MainInstance wraps the engine's default instance. It is always valid.
func MainInstance(eng engine.Engine) *Instance {
	return &Instance{
		eng:    eng,
		handle: eng.MainInstance(),
		main:   true,
	}
}

// MakeCurrent selects this instance on the calling OS thread. The effect
// only sticks for goroutines locked to their thread.
func (i *Instance) MakeCurrent() {
	i.eng.SetInstance(i.handle)
}

// IsMain reports whether this is the engine's default instance.
func (i *Instance) IsMain() bool {
	return i.main
}

// IsCurrent reports whether this instance is selected on the calling thread.
func (i *Instance) IsCurrent() bool {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return i.eng.ThisInstance() == i.handle
}

// Number is the identity assigned at creation. The main instance is 0.
func (i *Instance) Number() int32 {
	return i.number
}

// Handle returns the native handle.
func (i *Instance) Handle() engine.Handle {
	return i.handle
}

// Engine returns the engine the instance belongs to.
func (i *Instance) Engine() engine.Engine {
	return i.eng
}

// Close frees the engine context. If it is current on the calling thread,
// the thread is moved to the main instance first. Closing the main instance
// does nothing.
func (i *Instance) Close() error {
	if i.main || !i.closed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if i.eng.ThisInstance() == i.handle {
		i.eng.SetInstance(i.eng.MainInstance())
	}
	i.eng.FreeInstance(i.handle)
	return nil
}
