package pd

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/pd-runtime/atom"
	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
	"github.com/wippyai/pd-runtime/metrics"
	"github.com/wippyai/pd-runtime/resource"
)

// HookPolicy tunes hook registration.
type HookPolicy struct {
	// RejectDuringDSP refuses message hook registration while DSP runs,
	// since the audio goroutine may be polling the slot being replaced.
	RejectDuringDSP bool
}

// The engine has one hook slot per category for the whole process. slots
// records which registry last installed an adapter into each one so that a
// registry only ever clears slots it still owns.
type slotKey struct {
	eng engine.Engine
	cat engine.Category
}

type slotOwner struct {
	reg     *Callbacks
	adapter resource.Handle
}

var (
	slotsMu sync.Mutex
	slots   = make(map[slotKey]slotOwner)
)

// closureEntry owns a user closure. Drop forgets it.
type closureEntry[F any] struct {
	fn atomic.Pointer[F]
}

func (e *closureEntry[F]) Drop() { e.fn.Store(nil) }

// adapter is the engine-facing side of a registration. Once dropped, or
// once its registry is released, it ignores every call.
type adapter struct {
	owner  *Callbacks
	hook   any
	dead   atomic.Bool
	cat    engine.Category
	handle resource.Handle
}

func (a *adapter) Drop() { a.dead.Store(true) }

func (a *adapter) live() bool {
	return !a.dead.Load() && !a.owner.released.Load()
}

// Callbacks owns every closure a Pd registered and the adapters installed
// into the engine's hook slots on their behalf.
//
// Registering a category again replaces the adapter in the engine slot.
// The replaced adapter stays allocated until Release, since the engine may
// have been mid-call through it.
//
// Hook slots are engine state of the owning instance, so every install and
// every clear runs with that instance current.
type Callbacks struct {
	eng       engine.Engine
	inst      *Instance
	table     *resource.UnifiedTable
	observer  *entryObserver
	log       *zap.Logger
	metrics   *metrics.Collector
	activate  func() activeGuard
	dspActive func() bool
	policy    HookPolicy
	released  atomic.Bool
}

// NewCallbacks creates an empty registry for inst.
func NewCallbacks(inst *Instance, log *zap.Logger, m *metrics.Collector, policy HookPolicy) *Callbacks {
	if log == nil {
		log = Logger()
	}
	c := &Callbacks{
		eng:       inst.eng,
		inst:      inst,
		table:     resource.NewTable(),
		observer:  &entryObserver{log: log, metrics: m},
		log:       log,
		metrics:   m,
		policy:    policy,
		activate:  inst.activate,
		dspActive: func() bool { return false },
	}
	c.table.Subscribe(c.observer)
	return c
}

// Len returns the number of live entries, closures and adapters both.
func (c *Callbacks) Len() int {
	return c.table.Len()
}

// Owns reports whether the engine slot for cat currently holds one of this
// registry's adapters.
func (c *Callbacks) Owns(cat engine.Category) bool {
	slotsMu.Lock()
	defer slotsMu.Unlock()
	owner, ok := slots[slotKey{c.eng, cat}]
	return ok && owner.reg == c && c.table.Pinned(owner.adapter)
}

func (c *Callbacks) admit(cat engine.Category) error {
	if c.released.Load() {
		return errors.Closed(errors.PhaseReceive, "callback registry")
	}
	if c.policy.RejectDuringDSP && !cat.IsMIDI() && c.dspActive() {
		return errors.DSPActive(cat.String())
	}
	return nil
}

// register stores fn and an adapter built around it, then installs the
// adapter in the engine slot for cat. build receives a loader that yields
// the closure only while the registration is alive.
func register[F any](c *Callbacks, cat engine.Category, fn F, build func(load func() (F, bool)) any) error {
	if err := c.admit(cat); err != nil {
		return err
	}

	entry := &closureEntry[F]{}
	entry.fn.Store(&fn)
	a := &adapter{owner: c, cat: cat}
	a.hook = build(func() (F, bool) {
		var zero F
		if !a.live() {
			return zero, false
		}
		f := entry.fn.Load()
		if f == nil {
			return zero, false
		}
		c.metrics.EventDispatched(cat.String())
		return *f, true
	})

	if c.table.Insert(resource.KindClosure, cat.String(), entry) == 0 {
		return errors.Closed(errors.PhaseReceive, "callback registry")
	}
	a.handle = c.table.Insert(resource.KindAdapter, cat.String(), a)
	if a.handle == 0 {
		return errors.Closed(errors.PhaseReceive, "callback registry")
	}

	slotsMu.Lock()
	defer slotsMu.Unlock()
	// Release may have run since the inserts; its table close owns the
	// entries now and no slot may point back at this registry.
	if c.released.Load() {
		return errors.Closed(errors.PhaseReceive, "callback registry")
	}
	key := slotKey{c.eng, cat}
	if prev, ok := slots[key]; ok {
		prev.reg.table.Unpin(prev.adapter)
		if prev.reg != c {
			c.log.Debug("hook slot taken over from another registry", zap.Stringer("category", cat))
		}
	}
	c.install(cat, a.hook)
	c.table.Pin(a.handle)
	slots[key] = slotOwner{reg: c, adapter: a.handle}
	return nil
}

// Release clears every engine slot this registry still owns, then destroys
// all entries exactly once. Calling it again does nothing.
func (c *Callbacks) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}

	slotsMu.Lock()
	for key, owner := range slots {
		if owner.reg != c {
			continue
		}
		c.install(key.cat, nil)
		c.table.Unpin(owner.adapter)
		delete(slots, key)
	}
	slotsMu.Unlock()

	n := c.table.Len()
	err := c.table.Close()
	c.table.Unsubscribe(c.observer)
	if err != nil {
		c.log.Error("callback entries still referenced at release", zap.Error(err))
		return errors.Wrap(errors.PhaseReceive, errors.KindInvalidInput, err, "release callbacks")
	}
	c.log.Debug("callbacks released", zap.Int("entries", n))
	return nil
}

// install sets the slot for cat on the owning instance.
func (c *Callbacks) install(cat engine.Category, hook any) {
	defer c.activate().release()
	setHook(c.eng, cat, hook)
}

// setHook installs hook into the slot for cat. A nil hook clears it.
func setHook(eng engine.Engine, cat engine.Category, hook any) {
	switch cat {
	case engine.CategoryPrint:
		h, _ := hook.(engine.PrintHook)
		eng.SetPrintHook(h)
	case engine.CategoryBang:
		h, _ := hook.(engine.BangHook)
		eng.SetBangHook(h)
	case engine.CategoryFloat:
		h, _ := hook.(engine.FloatHook)
		eng.SetFloatHook(h)
	case engine.CategoryDouble:
		h, _ := hook.(engine.DoubleHook)
		eng.SetDoubleHook(h)
	case engine.CategorySymbol:
		h, _ := hook.(engine.SymbolHook)
		eng.SetSymbolHook(h)
	case engine.CategoryList:
		h, _ := hook.(engine.ListHook)
		eng.SetListHook(h)
	case engine.CategoryMessage:
		h, _ := hook.(engine.MessageHook)
		eng.SetMessageHook(h)
	case engine.CategoryNoteOn:
		h, _ := hook.(engine.NoteOnHook)
		eng.SetNoteOnHook(h)
	case engine.CategoryControlChange:
		h, _ := hook.(engine.ControlChangeHook)
		eng.SetControlChangeHook(h)
	case engine.CategoryProgramChange:
		h, _ := hook.(engine.ProgramChangeHook)
		eng.SetProgramChangeHook(h)
	case engine.CategoryPitchBend:
		h, _ := hook.(engine.PitchBendHook)
		eng.SetPitchBendHook(h)
	case engine.CategoryAfterTouch:
		h, _ := hook.(engine.AfterTouchHook)
		eng.SetAfterTouchHook(h)
	case engine.CategoryPolyAfterTouch:
		h, _ := hook.(engine.PolyAfterTouchHook)
		eng.SetPolyAfterTouchHook(h)
	case engine.CategoryMIDIByte:
		h, _ := hook.(engine.MIDIByteHook)
		eng.SetMIDIByteHook(h)
	}
}

// OnPrint registers fn for lines printed by the engine. Lines arrive
// concatenated, one call per printed message.
func (c *Callbacks) OnPrint(fn func(line string)) error {
	cat := engine.CategoryPrint
	return register(c, cat, fn, func(load func() (func(string), bool)) any {
		return engine.PrintHook(func(line []byte) {
			if f, ok := load(); ok {
				f(decodeText(cat, "print line", line))
			}
		})
	})
}

// OnBang registers fn for bangs sent to subscribed sources.
func (c *Callbacks) OnBang(fn func(source string)) error {
	cat := engine.CategoryBang
	return register(c, cat, fn, func(load func() (func(string), bool)) any {
		return engine.BangHook(func(source []byte) {
			if f, ok := load(); ok {
				f(decodeText(cat, "source", source))
			}
		})
	})
}

// OnFloat registers fn for single-precision floats. The engine prefers a
// double hook when both are set.
func (c *Callbacks) OnFloat(fn func(source string, value float32)) error {
	cat := engine.CategoryFloat
	return register(c, cat, fn, func(load func() (func(string, float32), bool)) any {
		return engine.FloatHook(func(source []byte, v float32) {
			if f, ok := load(); ok {
				f(decodeText(cat, "source", source), v)
			}
		})
	})
}

// OnDouble registers fn for floats at full precision.
func (c *Callbacks) OnDouble(fn func(source string, value float64)) error {
	cat := engine.CategoryDouble
	return register(c, cat, fn, func(load func() (func(string, float64), bool)) any {
		return engine.DoubleHook(func(source []byte, v float64) {
			if f, ok := load(); ok {
				f(decodeText(cat, "source", source), v)
			}
		})
	})
}

// OnSymbol registers fn for symbols.
func (c *Callbacks) OnSymbol(fn func(source, symbol string)) error {
	cat := engine.CategorySymbol
	return register(c, cat, fn, func(load func() (func(string, string), bool)) any {
		return engine.SymbolHook(func(source, symbol []byte) {
			if f, ok := load(); ok {
				f(decodeText(cat, "source", source), decodeText(cat, "symbol", symbol))
			}
		})
	})
}

// OnList registers fn for lists.
func (c *Callbacks) OnList(fn func(source string, list []atom.Atom)) error {
	cat := engine.CategoryList
	return register(c, cat, fn, func(load func() (func(string, []atom.Atom), bool)) any {
		return engine.ListHook(func(source []byte, argc int32, argv engine.RawList) {
			if f, ok := load(); ok {
				f(decodeText(cat, "source", source), decodeList(c.log, cat, argc, argv))
			}
		})
	})
}

// OnMessage registers fn for typed messages.
func (c *Callbacks) OnMessage(fn func(source, selector string, args []atom.Atom)) error {
	cat := engine.CategoryMessage
	return register(c, cat, fn, func(load func() (func(string, string, []atom.Atom), bool)) any {
		return engine.MessageHook(func(source, selector []byte, argc int32, argv engine.RawList) {
			if f, ok := load(); ok {
				f(decodeText(cat, "source", source), decodeText(cat, "selector", selector),
					decodeList(c.log, cat, argc, argv))
			}
		})
	})
}

// OnNoteOn registers fn for MIDI note-on output.
func (c *Callbacks) OnNoteOn(fn func(channel, pitch, velocity int32)) error {
	return register(c, engine.CategoryNoteOn, fn, func(load func() (func(int32, int32, int32), bool)) any {
		return engine.NoteOnHook(func(ch, p, v int32) {
			if f, ok := load(); ok {
				f(ch, p, v)
			}
		})
	})
}

// OnControlChange registers fn for MIDI control change output.
func (c *Callbacks) OnControlChange(fn func(channel, controller, value int32)) error {
	return register(c, engine.CategoryControlChange, fn, func(load func() (func(int32, int32, int32), bool)) any {
		return engine.ControlChangeHook(func(ch, n, v int32) {
			if f, ok := load(); ok {
				f(ch, n, v)
			}
		})
	})
}

// OnProgramChange registers fn for MIDI program change output.
func (c *Callbacks) OnProgramChange(fn func(channel, value int32)) error {
	return register(c, engine.CategoryProgramChange, fn, func(load func() (func(int32, int32), bool)) any {
		return engine.ProgramChangeHook(func(ch, v int32) {
			if f, ok := load(); ok {
				f(ch, v)
			}
		})
	})
}

// OnPitchBend registers fn for MIDI pitch bend output.
func (c *Callbacks) OnPitchBend(fn func(channel, value int32)) error {
	return register(c, engine.CategoryPitchBend, fn, func(load func() (func(int32, int32), bool)) any {
		return engine.PitchBendHook(func(ch, v int32) {
			if f, ok := load(); ok {
				f(ch, v)
			}
		})
	})
}

// OnAfterTouch registers fn for MIDI channel aftertouch output.
func (c *Callbacks) OnAfterTouch(fn func(channel, value int32)) error {
	return register(c, engine.CategoryAfterTouch, fn, func(load func() (func(int32, int32), bool)) any {
		return engine.AfterTouchHook(func(ch, v int32) {
			if f, ok := load(); ok {
				f(ch, v)
			}
		})
	})
}

// OnPolyAfterTouch registers fn for MIDI polyphonic aftertouch output.
func (c *Callbacks) OnPolyAfterTouch(fn func(channel, pitch, value int32)) error {
	return register(c, engine.CategoryPolyAfterTouch, fn, func(load func() (func(int32, int32, int32), bool)) any {
		return engine.PolyAfterTouchHook(func(ch, p, v int32) {
			if f, ok := load(); ok {
				f(ch, p, v)
			}
		})
	})
}

// OnMIDIByte registers fn for raw MIDI bytes.
func (c *Callbacks) OnMIDIByte(fn func(port, value int32)) error {
	return register(c, engine.CategoryMIDIByte, fn, func(load func() (func(int32, int32), bool)) any {
		return engine.MIDIByteHook(func(port, v int32) {
			if f, ok := load(); ok {
				f(port, v)
			}
		})
	})
}

// entryObserver feeds table lifecycle events to logs and metrics.
type entryObserver struct {
	log     *zap.Logger
	metrics *metrics.Collector
}

func (o *entryObserver) OnResourceEvent(e resource.Event) {
	switch e.Type {
	case resource.EventCreated:
		if e.Kind == resource.KindAdapter {
			o.metrics.HookRegistered(e.Label)
		}
	case resource.EventDropped:
		o.metrics.EntryReleased(e.Kind.String())
		if ce := o.log.Check(zap.DebugLevel, "callback entry released"); ce != nil {
			ce.Write(zap.Stringer("kind", e.Kind), zap.String("category", e.Label), zap.Uint32("handle", uint32(e.Handle)))
		}
	}
}
