package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// SimConfig holds configuration for the simulated engine.
type SimConfig struct {
	// MaxInstances limits instances besides the main one. 0 means unlimited.
	MaxInstances int

	// MaxMessageCapacity is the largest buffer StartMessage will allocate.
	// 0 means 1<<20 elements.
	MaxMessageCapacity int

	// MIDIThrough echoes every MIDI input to the matching MIDI output hook,
	// as a patch wiring each [*in] object to its [*out] counterpart would.
	MIDIThrough bool

	// BlockSize is the frame count per tick. 0 means DefaultBlockSize.
	BlockSize int
}

// Sim is a pure Go Engine. It keeps the engine's global shape: a process
// wide instance table, one current-instance selector per OS thread, one hook
// slot per category, and a message buffer that trusts its caller on capacity
// but refuses to grow past it.
type Sim struct {
	instances   map[Handle]*simInstance
	current     map[int]Handle
	hooks       simHooks
	cfg         SimConfig
	overflows   atomic.Int64
	main        Handle
	nextHandle  Handle
	nextBinding Binding
	nextPatch   Patch
	mu          sync.Mutex
	hookMu      sync.RWMutex
}

type simHooks struct {
	print          PrintHook
	bang           BangHook
	float          FloatHook
	double         DoubleHook
	symbol         SymbolHook
	list           ListHook
	message        MessageHook
	noteOn         NoteOnHook
	controlChange  ControlChangeHook
	programChange  ProgramChangeHook
	pitchBend      PitchBendHook
	afterTouch     AfterTouchHook
	polyAfterTouch PolyAfterTouchHook
	midiByte       MIDIByteHook
}

type simInstance struct {
	bindings    map[Binding]string
	bound       map[string]int
	patches     map[Patch]*simPatch
	queue       []simEvent
	midiQueue   []simEvent
	msg         []RawAtom
	searchPaths []string
	handle      Handle
	msgCap      int
	inputs      int
	outputs     int
	sampleRate  int
	dollarZero  int
	msgOpen     bool
	dsp         bool
}

type simEvent struct {
	source   string
	selector string
	line     string
	args     []RawAtom
	value    float64
	a, b, c  int32
	category Category
}

const maxRouteDepth = 64

// NewSim creates a simulated engine with default configuration.
func NewSim() *Sim {
	return NewSimWithConfig(nil)
}

// NewSimWithConfig creates a simulated engine with custom configuration.
func NewSimWithConfig(cfg *SimConfig) *Sim {
	s := &Sim{
		instances: make(map[Handle]*simInstance),
		current:   make(map[int]Handle),
	}
	if cfg != nil {
		s.cfg = *cfg
	}
	if s.cfg.MaxMessageCapacity <= 0 {
		s.cfg.MaxMessageCapacity = 1 << 20
	}
	if s.cfg.BlockSize <= 0 {
		s.cfg.BlockSize = DefaultBlockSize
	}
	s.main = s.newInstanceLocked()
	Logger().Debug("simulated engine created", zap.Uint64("main", uint64(s.main)))
	return s
}

// Overflows returns how many add calls the message buffer refused.
func (s *Sim) Overflows() int64 {
	return s.overflows.Load()
}

// Hooked reports whether the slot for c is occupied.
func (s *Sim) Hooked(c Category) bool {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	h := &s.hooks
	switch c {
	case CategoryPrint:
		return h.print != nil
	case CategoryBang:
		return h.bang != nil
	case CategoryFloat:
		return h.float != nil
	case CategoryDouble:
		return h.double != nil
	case CategorySymbol:
		return h.symbol != nil
	case CategoryList:
		return h.list != nil
	case CategoryMessage:
		return h.message != nil
	case CategoryNoteOn:
		return h.noteOn != nil
	case CategoryControlChange:
		return h.controlChange != nil
	case CategoryProgramChange:
		return h.programChange != nil
	case CategoryPitchBend:
		return h.pitchBend != nil
	case CategoryAfterTouch:
		return h.afterTouch != nil
	case CategoryPolyAfterTouch:
		return h.polyAfterTouch != nil
	case CategoryMIDIByte:
		return h.midiByte != nil
	}
	return false
}

// Instance table

func (s *Sim) newInstanceLocked() Handle {
	s.nextHandle++
	h := s.nextHandle
	s.instances[h] = &simInstance{
		handle:     h,
		bindings:   make(map[Binding]string),
		bound:      make(map[string]int),
		patches:    make(map[Patch]*simPatch),
		dollarZero: 1000,
	}
	return h
}

func (s *Sim) NewInstance() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxInstances > 0 && len(s.instances)-1 >= s.cfg.MaxInstances {
		return NoInstance, fmt.Errorf("%w: instance limit %d reached", ErrAllocation, s.cfg.MaxInstances)
	}
	h := s.newInstanceLocked()
	debugf("sim: new instance %d", h)
	return h, nil
}

func (s *Sim) FreeInstance(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == s.main {
		return
	}
	delete(s.instances, h)
	debugf("sim: freed instance %d", h)
}

func (s *Sim) SetInstance(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[osThreadID()] = h
}

func (s *Sim) ThisInstance() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thisLocked()
}

// thisLocked returns the calling thread's selection. Threads that never
// selected anything start on the main instance.
func (s *Sim) thisLocked() Handle {
	if h, ok := s.current[osThreadID()]; ok {
		return h
	}
	return s.main
}

func (s *Sim) MainInstance() Handle {
	return s.main
}

func (s *Sim) NumInstances() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

// currentLocked returns the calling thread's instance. A missing or freed
// selection is a caller bug, the same one that crashes the native engine.
func (s *Sim) currentLocked() *simInstance {
	h := s.thisLocked()
	inst, ok := s.instances[h]
	if !ok {
		if h == NoInstance {
			panic(ErrNoCurrent)
		}
		panic(fmt.Sprintf("engine: current instance %d was freed", h))
	}
	return inst
}

// Hook table

func (s *Sim) setHook(fn func(h *simHooks)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	fn(&s.hooks)
}

func (s *Sim) SetPrintHook(h PrintHook)       { s.setHook(func(t *simHooks) { t.print = h }) }
func (s *Sim) SetBangHook(h BangHook)         { s.setHook(func(t *simHooks) { t.bang = h }) }
func (s *Sim) SetFloatHook(h FloatHook)       { s.setHook(func(t *simHooks) { t.float = h }) }
func (s *Sim) SetDoubleHook(h DoubleHook)     { s.setHook(func(t *simHooks) { t.double = h }) }
func (s *Sim) SetSymbolHook(h SymbolHook)     { s.setHook(func(t *simHooks) { t.symbol = h }) }
func (s *Sim) SetListHook(h ListHook)         { s.setHook(func(t *simHooks) { t.list = h }) }
func (s *Sim) SetMessageHook(h MessageHook)   { s.setHook(func(t *simHooks) { t.message = h }) }
func (s *Sim) SetNoteOnHook(h NoteOnHook)     { s.setHook(func(t *simHooks) { t.noteOn = h }) }
func (s *Sim) SetPitchBendHook(h PitchBendHook) {
	s.setHook(func(t *simHooks) { t.pitchBend = h })
}
func (s *Sim) SetControlChangeHook(h ControlChangeHook) {
	s.setHook(func(t *simHooks) { t.controlChange = h })
}
func (s *Sim) SetProgramChangeHook(h ProgramChangeHook) {
	s.setHook(func(t *simHooks) { t.programChange = h })
}
func (s *Sim) SetAfterTouchHook(h AfterTouchHook) {
	s.setHook(func(t *simHooks) { t.afterTouch = h })
}
func (s *Sim) SetPolyAfterTouchHook(h PolyAfterTouchHook) {
	s.setHook(func(t *simHooks) { t.polyAfterTouch = h })
}
func (s *Sim) SetMIDIByteHook(h MIDIByteHook) { s.setHook(func(t *simHooks) { t.midiByte = h }) }

// Message buffer

func (s *Sim) StartMessage(capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	if capacity < 0 || capacity > s.cfg.MaxMessageCapacity {
		return fmt.Errorf("%w: message buffer of %d elements", ErrAllocation, capacity)
	}
	inst.msg = make([]RawAtom, 0, capacity)
	inst.msgCap = capacity
	inst.msgOpen = true
	return nil
}

func (s *Sim) addAtom(a RawAtom) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	if !inst.msgOpen || len(inst.msg) >= inst.msgCap {
		s.overflows.Add(1)
		return
	}
	inst.msg = append(inst.msg, a)
}

func (s *Sim) AddFloat(v float32) { s.addAtom(RawAtom{Type: AtomFloat, Float: float64(v)}) }
func (s *Sim) AddDouble(v float64) { s.addAtom(RawAtom{Type: AtomFloat, Float: v}) }
func (s *Sim) AddSymbol(v string)  { s.addAtom(RawAtom{Type: AtomSymbol, Symbol: []byte(v)}) }

func (s *Sim) takeMessage() ([]RawAtom, error) {
	inst := s.currentLocked()
	if !inst.msgOpen {
		return nil, ErrBufferClosed
	}
	args := inst.msg
	inst.msg = nil
	inst.msgOpen = false
	return args, nil
}

func (s *Sim) FinishList(receiver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	args, err := s.takeMessage()
	if err != nil {
		return err
	}
	return s.sendLocked(receiver, "list", args)
}

func (s *Sim) FinishMessage(receiver, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	args, err := s.takeMessage()
	if err != nil {
		return err
	}
	return s.sendLocked(receiver, selector, args)
}

// Sender

func (s *Sim) send(receiver, selector string, args []RawAtom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(receiver, selector, args)
}

func (s *Sim) sendLocked(receiver, selector string, args []RawAtom) error {
	inst := s.currentLocked()
	if !s.route(inst, receiver, selector, args, 0) {
		return fmt.Errorf("%w: %q", ErrNoReceiver, receiver)
	}
	return nil
}

func (s *Sim) SendBang(receiver string) error {
	return s.send(receiver, "bang", nil)
}

func (s *Sim) SendFloat(receiver string, v float32) error {
	return s.send(receiver, "float", []RawAtom{{Type: AtomFloat, Float: float64(v)}})
}

func (s *Sim) SendDouble(receiver string, v float64) error {
	return s.send(receiver, "float", []RawAtom{{Type: AtomFloat, Float: v}})
}

func (s *Sim) SendSymbol(receiver, symbol string) error {
	return s.send(receiver, "symbol", []RawAtom{{Type: AtomSymbol, Symbol: []byte(symbol)}})
}

func check7bit(v int32) bool { return v >= 0 && v <= 0x7f }
func check8bit(v int32) bool { return v >= 0 && v <= 0xff }
func checkPort(v int32) bool { return v >= 0 && v <= 0x0fff }

func (s *Sim) midi(ok bool, e simEvent) error {
	if !ok {
		return fmt.Errorf("%w: %s(%d, %d, %d)", ErrRange, e.category, e.a, e.b, e.c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	if s.cfg.MIDIThrough {
		inst.midiQueue = append(inst.midiQueue, e)
	}
	return nil
}

func (s *Sim) SendNoteOn(channel, pitch, velocity int32) error {
	return s.midi(channel >= 0 && check7bit(pitch) && check7bit(velocity),
		simEvent{category: CategoryNoteOn, a: channel, b: pitch, c: velocity})
}

func (s *Sim) SendControlChange(channel, controller, value int32) error {
	return s.midi(channel >= 0 && check7bit(controller) && check7bit(value),
		simEvent{category: CategoryControlChange, a: channel, b: controller, c: value})
}

func (s *Sim) SendProgramChange(channel, value int32) error {
	return s.midi(channel >= 0 && check7bit(value),
		simEvent{category: CategoryProgramChange, a: channel, b: value})
}

func (s *Sim) SendPitchBend(channel, value int32) error {
	return s.midi(channel >= 0 && value >= -8192 && value <= 8191,
		simEvent{category: CategoryPitchBend, a: channel, b: value})
}

func (s *Sim) SendAfterTouch(channel, value int32) error {
	return s.midi(channel >= 0 && check7bit(value),
		simEvent{category: CategoryAfterTouch, a: channel, b: value})
}

func (s *Sim) SendPolyAfterTouch(channel, pitch, value int32) error {
	return s.midi(channel >= 0 && check7bit(pitch) && check7bit(value),
		simEvent{category: CategoryPolyAfterTouch, a: channel, b: pitch, c: value})
}

func (s *Sim) SendMIDIByte(port, value int32) error {
	return s.midi(checkPort(port) && check8bit(value),
		simEvent{category: CategoryMIDIByte, a: port, b: value})
}

func (s *Sim) SendSysex(port, value int32) error {
	return s.midi(checkPort(port) && check7bit(value),
		simEvent{category: CategoryMIDIByte, a: port, b: value})
}

func (s *Sim) SendSysRealtime(port, value int32) error {
	return s.midi(checkPort(port) && check8bit(value),
		simEvent{category: CategoryMIDIByte, a: port, b: value})
}

// route delivers a message to every receiver of name in inst: [r] objects in
// open patches and host bindings. It reports whether anything received it.
func (s *Sim) route(inst *simInstance, name, selector string, args []RawAtom, depth int) bool {
	if depth > maxRouteDepth {
		Logger().Warn("sim: routing depth exceeded, message dropped", zap.String("receiver", name))
		return true
	}
	found := false
	for _, id := range sortedPatches(inst.patches) {
		p := inst.patches[id]
		for _, idx := range p.receivers[name] {
			found = true
			s.fire(inst, p, idx, selector, args, depth)
		}
	}
	if inst.bound[name] > 0 {
		found = true
		inst.queue = append(inst.queue, hostEvent(name, selector, args))
	}
	return found
}

func (s *Sim) fire(inst *simInstance, p *simPatch, from int, selector string, args []RawAtom, depth int) {
	for _, to := range p.edges[from] {
		if to < 0 || to >= len(p.objects) {
			continue
		}
		obj := p.objects[to]
		switch obj.class {
		case "s":
			if obj.arg != "" {
				s.route(inst, obj.arg, selector, args, depth+1)
			}
		case "print":
			prefix := obj.arg
			if prefix == "" {
				prefix = "print"
			}
			inst.queue = append(inst.queue, simEvent{
				category: CategoryPrint,
				line:     formatPrint(prefix, selector, args),
			})
		}
	}
}

// hostEvent classifies a message arriving at a host binding the way the
// engine's receiver object dispatches it to hooks.
func hostEvent(source, selector string, args []RawAtom) simEvent {
	e := simEvent{source: source, selector: selector, args: args}
	switch {
	case selector == "bang" && len(args) == 0:
		e.category = CategoryBang
	case selector == "float" && len(args) == 1 && args[0].Type == AtomFloat:
		e.category = CategoryFloat
		e.value = args[0].Float
	case selector == "symbol" && len(args) == 1 && args[0].Type == AtomSymbol:
		e.category = CategorySymbol
	case selector == "list":
		e.category = CategoryList
	default:
		e.category = CategoryMessage
	}
	return e
}

func sortedPatches(m map[Patch]*simPatch) []Patch {
	ids := make([]Patch, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Receivers

func (s *Sim) Bind(name string) (Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	s.nextBinding++
	b := s.nextBinding
	inst.bindings[b] = name
	inst.bound[name]++
	return b, nil
}

func (s *Sim) Unbind(b Binding) {
	if b == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	name, ok := inst.bindings[b]
	if !ok {
		return
	}
	delete(inst.bindings, b)
	if inst.bound[name]--; inst.bound[name] <= 0 {
		delete(inst.bound, name)
	}
}

func (s *Sim) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	if inst.bound[name] > 0 {
		return true
	}
	for _, p := range inst.patches {
		if len(p.receivers[name]) > 0 {
			return true
		}
	}
	return false
}

func (s *Sim) PollMessages() {
	s.mu.Lock()
	inst := s.currentLocked()
	events := inst.queue
	inst.queue = nil
	s.mu.Unlock()

	for i := range events {
		s.dispatch(&events[i])
	}
}

func (s *Sim) PollMIDIMessages() {
	s.mu.Lock()
	inst := s.currentLocked()
	events := inst.midiQueue
	inst.midiQueue = nil
	s.mu.Unlock()

	for i := range events {
		s.dispatch(&events[i])
	}
}

// dispatch invokes the hook for e. Hooks run without engine locks held so
// they may call back into the engine.
func (s *Sim) dispatch(e *simEvent) {
	s.hookMu.RLock()
	h := s.hooks
	s.hookMu.RUnlock()

	src := []byte(e.source)
	switch e.category {
	case CategoryPrint:
		if h.print != nil {
			h.print([]byte(e.line))
		}
	case CategoryBang:
		if h.bang != nil {
			h.bang(src)
		}
	case CategoryFloat:
		if h.double != nil {
			h.double(src, e.value)
		} else if h.float != nil {
			h.float(src, float32(e.value))
		}
	case CategorySymbol:
		if h.symbol != nil {
			h.symbol(src, append([]byte(nil), e.args[0].Symbol...))
		}
	case CategoryList:
		if h.list != nil {
			h.list(src, int32(len(e.args)), SliceList(e.args))
		}
	case CategoryMessage:
		if h.message != nil {
			h.message(src, []byte(e.selector), int32(len(e.args)), SliceList(e.args))
		}
	case CategoryNoteOn:
		if h.noteOn != nil {
			h.noteOn(e.a, e.b, e.c)
		}
	case CategoryControlChange:
		if h.controlChange != nil {
			h.controlChange(e.a, e.b, e.c)
		}
	case CategoryProgramChange:
		if h.programChange != nil {
			h.programChange(e.a, e.b)
		}
	case CategoryPitchBend:
		if h.pitchBend != nil {
			h.pitchBend(e.a, e.b)
		}
	case CategoryAfterTouch:
		if h.afterTouch != nil {
			h.afterTouch(e.a, e.b)
		}
	case CategoryPolyAfterTouch:
		if h.polyAfterTouch != nil {
			h.polyAfterTouch(e.a, e.b, e.c)
		}
	case CategoryMIDIByte:
		if h.midiByte != nil {
			h.midiByte(e.a, e.b)
		}
	}
}

// Processor

func (s *Sim) InitAudio(inputChannels, outputChannels, sampleRate int) error {
	if inputChannels < 0 || outputChannels < 0 || sampleRate <= 0 {
		return fmt.Errorf("%w: in=%d out=%d rate=%d", ErrAudioConfig, inputChannels, outputChannels, sampleRate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	inst.inputs = inputChannels
	inst.outputs = outputChannels
	inst.sampleRate = sampleRate
	return nil
}

func (s *Sim) SetDSP(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentLocked().dsp = on
	return nil
}

func (s *Sim) BlockSize() int {
	return s.cfg.BlockSize
}

// audioState snapshots what block processing needs.
func (s *Sim) audioState() (ins, outs int, dsp bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	return inst.inputs, inst.outputs, inst.dsp
}

type sample interface {
	~float32 | ~float64 | ~int16
}

// interleaved copies each input channel to the output channel of the same
// index while DSP runs and writes silence otherwise. Indexes past either
// buffer are skipped.
func interleaved[T sample](frames, ins, outs int, dsp bool, in, out []T) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < outs; ch++ {
			idx := f*outs + ch
			if idx >= len(out) {
				return
			}
			var v T
			if dsp && ch < ins {
				if j := f*ins + ch; j < len(in) {
					v = in[j]
				}
			}
			out[idx] = v
		}
	}
}

// planar is interleaved for channel-major buffers of one block.
func planar[T sample](frames, ins, outs int, dsp bool, in, out []T) {
	for ch := 0; ch < outs; ch++ {
		for f := 0; f < frames; f++ {
			idx := ch*frames + f
			if idx >= len(out) {
				return
			}
			var v T
			if dsp && ch < ins {
				if j := ch*frames + f; j < len(in) {
					v = in[j]
				}
			}
			out[idx] = v
		}
	}
}

func (s *Sim) ProcessFloat(ticks int, in, out []float32) error {
	ins, outs, dsp := s.audioState()
	interleaved(ticks*s.cfg.BlockSize, ins, outs, dsp, in, out)
	return nil
}

func (s *Sim) ProcessDouble(ticks int, in, out []float64) error {
	ins, outs, dsp := s.audioState()
	interleaved(ticks*s.cfg.BlockSize, ins, outs, dsp, in, out)
	return nil
}

func (s *Sim) ProcessShort(ticks int, in, out []int16) error {
	ins, outs, dsp := s.audioState()
	interleaved(ticks*s.cfg.BlockSize, ins, outs, dsp, in, out)
	return nil
}

func (s *Sim) ProcessRaw(in, out []float32) error {
	ins, outs, dsp := s.audioState()
	planar(s.cfg.BlockSize, ins, outs, dsp, in, out)
	return nil
}

func (s *Sim) ProcessRawDouble(in, out []float64) error {
	ins, outs, dsp := s.audioState()
	planar(s.cfg.BlockSize, ins, outs, dsp, in, out)
	return nil
}

func (s *Sim) ProcessRawShort(in, out []int16) error {
	ins, outs, dsp := s.audioState()
	planar(s.cfg.BlockSize, ins, outs, dsp, in, out)
	return nil
}

// Patches

func (s *Sim) OpenPatch(name, dir string) (Patch, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrPatchOpen, path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	inst.dollarZero++
	s.nextPatch++
	id := s.nextPatch
	inst.patches[id] = parsePatch(path, string(data), inst.dollarZero)
	debugf("sim: opened %s as patch %d ($0=%d)", path, id, inst.dollarZero)
	return id, nil
}

func (s *Sim) ClosePatch(p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.currentLocked().patches, p)
}

func (s *Sim) DollarZero(p Patch) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch, ok := s.currentLocked().patches[p]; ok {
		return patch.dollarZero
	}
	return 0
}

func (s *Sim) AddSearchPath(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := s.currentLocked()
	inst.searchPaths = append(inst.searchPaths, dir)
}

func (s *Sim) ClearSearchPaths() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentLocked().searchPaths = nil
}

// SearchPaths returns the current instance's search paths.
func (s *Sim) SearchPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.currentLocked().searchPaths...)
}

var _ Engine = (*Sim)(nil)
