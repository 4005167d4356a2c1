package pd

import (
	"runtime"

	"github.com/wippyai/pd-runtime/engine"
)

// activeGuard holds the thread's previous selection while an operation runs
// against another instance. It lives on the stack of one call:
//
//	defer inst.activate().release()
//
// The goroutine stays locked to its OS thread between activate and release
// because the engine's selector is per thread.
type activeGuard struct {
	eng      engine.Engine
	previous engine.Handle
	switched bool
}

// activate makes i current for the duration of the guard.
func (i *Instance) activate() activeGuard {
	runtime.LockOSThread()
	current := i.eng.ThisInstance()
	if current == i.handle {
		return activeGuard{eng: i.eng}
	}
	i.eng.SetInstance(i.handle)
	return activeGuard{eng: i.eng, previous: current, switched: true}
}

// release restores the selection seen by activate. A thread that had no
// selection gets the main instance, which is always valid.
func (g activeGuard) release() {
	if g.switched {
		prev := g.previous
		if prev == engine.NoInstance {
			prev = g.eng.MainInstance()
		}
		g.eng.SetInstance(prev)
	}
	runtime.UnlockOSThread()
}
