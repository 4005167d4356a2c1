package pd

import (
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/pd-runtime/atom"
	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
	"github.com/wippyai/pd-runtime/metrics"
)

// Options configures a Pd.
type Options struct {
	// Logger overrides the package logger for this Pd.
	Logger *zap.Logger

	// Metrics receives bridge metrics. Nil disables them.
	Metrics *metrics.Collector

	// HookPolicy tunes callback registration.
	HookPolicy HookPolicy

	// UseMainInstance wraps the engine's main instance instead of creating
	// a new one. Close then leaves the instance alive.
	UseMainInstance bool
}

// Pd is one engine instance together with everything the Go side tracks
// for it: registered callbacks, the message in progress, subscriptions, the
// open patch and audio settings.
//
// Every method that touches engine state makes the instance current for
// the duration of the call and restores the previous selection afterwards,
// so several Pd values can be driven from one goroutine. Pd is safe for
// concurrent use, but hook slots are process wide: the last registration
// for a category wins across all Pd values.
type Pd struct {
	eng           engine.Engine
	inst          *Instance
	callbacks     *Callbacks
	log           *zap.Logger
	metrics       *metrics.Collector
	subscriptions map[string]engine.Binding
	patch         *openPatch
	searchPaths   []string
	builder       messageBuilder
	inputs        int
	outputs       int
	sampleRate    int
	audioActive   bool
	closed        bool
	mu            sync.Mutex
}

// New wraps a fresh engine instance. The calling thread's current instance
// is left alone.
func New(eng engine.Engine, opts Options) (*Pd, error) {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	var inst *Instance
	if opts.UseMainInstance {
		inst = MainInstance(eng)
	} else {
		var err error
		if inst, err = NewInstance(eng); err != nil {
			return nil, err
		}
	}

	p := &Pd{
		eng:           eng,
		inst:          inst,
		log:           log.With(zap.Int32("instance", inst.Number())),
		metrics:       opts.Metrics,
		subscriptions: make(map[string]engine.Binding),
	}
	p.callbacks = NewCallbacks(inst, p.log, opts.Metrics, opts.HookPolicy)
	p.callbacks.activate = p.activate
	p.callbacks.dspActive = p.AudioActive
	p.metrics.InstanceOpened()
	p.log.Debug("pd instance created", zap.Bool("main", inst.IsMain()))
	return p, nil
}

// InitAndConfigure creates a Pd and initializes its audio with the given
// channel counts and sample rate.
func InitAndConfigure(eng engine.Engine, inputChannels, outputChannels, sampleRate int, opts Options) (*Pd, error) {
	p, err := New(eng, opts)
	if err != nil {
		return nil, err
	}
	if err := p.InitAudio(inputChannels, outputChannels, sampleRate); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// InitAudio configures channel counts and sample rate.
func (p *Pd) InitAudio(inputChannels, outputChannels, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseInit); err != nil {
		return err
	}
	defer p.activate().release()
	if err := p.eng.InitAudio(inputChannels, outputChannels, sampleRate); err != nil {
		return errors.New(errors.PhaseInit, errors.KindInitialization).
			Cause(err).
			Detail("init audio: %d in, %d out at %d Hz", inputChannels, outputChannels, sampleRate).
			Build()
	}
	p.inputs, p.outputs, p.sampleRate = inputChannels, outputChannels, sampleRate
	return nil
}

// Close abandons any message in progress, unsubscribes everything, closes
// the open patch, releases all callbacks and frees the instance. Calling it
// again does nothing.
func (p *Pd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	func() {
		defer p.activate().release()
		p.abandonMessage()
		p.unsubscribeAllLocked()
		if err := p.closePatchLocked(); err != nil {
			errs = append(errs, err)
		}
	}()
	if err := p.callbacks.Release(); err != nil {
		errs = append(errs, err)
	}
	if err := p.inst.Close(); err != nil {
		errs = append(errs, err)
	}
	p.metrics.InstanceClosed()
	p.log.Debug("pd instance closed")
	return stderrors.Join(errs...)
}

// Callbacks returns the registry owning this Pd's hook closures.
func (p *Pd) Callbacks() *Callbacks {
	return p.callbacks
}

// Instance returns the wrapped engine instance.
func (p *Pd) Instance() *Instance {
	return p.inst
}

// AudioContext returns a handle for the audio goroutine.
func (p *Pd) AudioContext() *AudioContext {
	return &AudioContext{inst: p.inst, metrics: p.metrics}
}

// SetAsCurrent selects this instance on the calling thread. Only useful to
// goroutines locked to their OS thread.
func (p *Pd) SetAsCurrent() {
	p.inst.MakeCurrent()
}

// InstanceNumber returns the instance's number; the main instance is 0.
func (p *Pd) InstanceNumber() int32 {
	return p.inst.Number()
}

// IsMainInstance reports whether this Pd wraps the main instance.
func (p *Pd) IsMainInstance() bool {
	return p.inst.IsMain()
}

// IsCurrentInstance reports whether this instance is current on the calling thread.
func (p *Pd) IsCurrentInstance() bool {
	return p.inst.IsCurrent()
}

// SampleRate returns the configured sample rate.
func (p *Pd) SampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sampleRate
}

// InputChannels returns the configured input channel count.
func (p *Pd) InputChannels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputs
}

// OutputChannels returns the configured output channel count.
func (p *Pd) OutputChannels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputs
}

// activate makes the instance current for one operation.
func (p *Pd) activate() activeGuard {
	g := p.inst.activate()
	if g.switched {
		p.metrics.ContextSwitch()
	}
	return g
}

func (p *Pd) usable(phase errors.Phase) error {
	if p.closed {
		return errors.Closed(phase, "pd instance")
	}
	return nil
}

// engineErr maps an engine failure to a structured error.
func engineErr(phase errors.Phase, target string, err error) error {
	switch {
	case stderrors.Is(err, engine.ErrNoReceiver):
		return errors.New(phase, errors.KindNotFound).
			Target(target).Cause(err).Detail("no receiver bound to this name").Build()
	case stderrors.Is(err, engine.ErrAllocation):
		return errors.New(phase, errors.KindAllocation).Target(target).Cause(err).Build()
	case stderrors.Is(err, engine.ErrRange):
		return errors.New(phase, errors.KindOutOfRange).Target(target).Cause(err).Build()
	case stderrors.Is(err, engine.ErrBufferClosed):
		return errors.New(phase, errors.KindNotBuilding).Target(target).Cause(err).Build()
	case stderrors.Is(err, engine.ErrPatchOpen):
		return errors.Patch("open patch", target, err)
	default:
		return errors.New(phase, errors.KindInvalidInput).Target(target).Cause(err).Build()
	}
}

// OnPrint registers fn for print output, one line per call.
// See Callbacks for the ownership rules.
func (p *Pd) OnPrint(fn func(line string)) error {
	return p.callbacks.OnPrint(fn)
}

// OnBang registers fn for bangs sent to subscribed receivers.
func (p *Pd) OnBang(fn func(source string)) error {
	return p.callbacks.OnBang(fn)
}

// OnFloat registers fn for single-precision floats. An OnDouble
// registration takes precedence when both are set.
func (p *Pd) OnFloat(fn func(source string, value float32)) error {
	return p.callbacks.OnFloat(fn)
}

// OnDouble registers fn for floats at full precision.
func (p *Pd) OnDouble(fn func(source string, value float64)) error {
	return p.callbacks.OnDouble(fn)
}

// OnSymbol registers fn for symbols sent to subscribed receivers.
func (p *Pd) OnSymbol(fn func(source, symbol string)) error {
	return p.callbacks.OnSymbol(fn)
}

// OnList registers fn for lists sent to subscribed receivers.
func (p *Pd) OnList(fn func(source string, list []atom.Atom)) error {
	return p.callbacks.OnList(fn)
}

// OnMessage registers fn for typed messages sent to subscribed receivers.
func (p *Pd) OnMessage(fn func(source, selector string, args []atom.Atom)) error {
	return p.callbacks.OnMessage(fn)
}

// OnNoteOn registers fn for MIDI note-on events from [noteout].
func (p *Pd) OnNoteOn(fn func(channel, pitch, velocity int32)) error {
	return p.callbacks.OnNoteOn(fn)
}

// OnControlChange registers fn for MIDI control changes from [ctlout].
func (p *Pd) OnControlChange(fn func(channel, controller, value int32)) error {
	return p.callbacks.OnControlChange(fn)
}

// OnProgramChange registers fn for MIDI program changes from [pgmout].
func (p *Pd) OnProgramChange(fn func(channel, value int32)) error {
	return p.callbacks.OnProgramChange(fn)
}

// OnPitchBend registers fn for MIDI pitch bends from [bendout].
func (p *Pd) OnPitchBend(fn func(channel, value int32)) error {
	return p.callbacks.OnPitchBend(fn)
}

// OnAfterTouch registers fn for channel aftertouch from [touchout].
func (p *Pd) OnAfterTouch(fn func(channel, value int32)) error {
	return p.callbacks.OnAfterTouch(fn)
}

// OnPolyAfterTouch registers fn for polyphonic aftertouch from [polytouchout].
func (p *Pd) OnPolyAfterTouch(fn func(channel, pitch, value int32)) error {
	return p.callbacks.OnPolyAfterTouch(fn)
}

// OnMIDIByte registers fn for raw MIDI bytes from [midiout].
func (p *Pd) OnMIDIByte(fn func(port, value int32)) error {
	return p.callbacks.OnMIDIByte(fn)
}
