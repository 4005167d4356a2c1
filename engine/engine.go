package engine

// Handle is an opaque reference to a native instance. NoInstance means the
// thread has no current instance.
type Handle uintptr

const NoInstance Handle = 0

// Binding is an opaque reference returned by Bind.
type Binding uintptr

// Patch is an opaque reference to an open patch.
type Patch uintptr

// DefaultBlockSize is the number of frames the engine processes per tick.
const DefaultBlockSize = 64

// MaxTypedArgs is the number of trailing elements a typed message can address.
const MaxTypedArgs = 4

// Category identifies one hook slot.
type Category uint8

const (
	CategoryPrint Category = iota
	CategoryBang
	CategoryFloat
	CategoryDouble
	CategorySymbol
	CategoryList
	CategoryMessage
	CategoryNoteOn
	CategoryControlChange
	CategoryProgramChange
	CategoryPitchBend
	CategoryAfterTouch
	CategoryPolyAfterTouch
	CategoryMIDIByte

	categoryCount
)

// NumCategories is the number of hook slots.
const NumCategories = int(categoryCount)

var categoryNames = [...]string{
	CategoryPrint:          "print",
	CategoryBang:           "bang",
	CategoryFloat:          "float",
	CategoryDouble:         "double",
	CategorySymbol:         "symbol",
	CategoryList:           "list",
	CategoryMessage:        "message",
	CategoryNoteOn:         "noteon",
	CategoryControlChange:  "controlchange",
	CategoryProgramChange:  "programchange",
	CategoryPitchBend:      "pitchbend",
	CategoryAfterTouch:     "aftertouch",
	CategoryPolyAfterTouch: "polyaftertouch",
	CategoryMIDIByte:       "midibyte",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// IsMIDI reports whether events of this category are drained by PollMIDIMessages.
func (c Category) IsMIDI() bool {
	return c >= CategoryNoteOn && c < categoryCount
}

// Categories returns every hook category in slot order.
func Categories() []Category {
	out := make([]Category, 0, NumCategories)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// AtomType is the tag of a raw list element.
type AtomType uint8

const (
	AtomFloat AtomType = iota + 1
	AtomSymbol
	AtomOther // pointers, dollar args and other engine-internal kinds
)

// RawAtom is one undecoded list element. Symbol bytes are not validated.
type RawAtom struct {
	Symbol []byte
	Float  float64
	Type   AtomType
}

// RawList gives indexed access to a list buffer owned by the engine.
// The length travels separately as argc.
type RawList interface {
	At(i int) RawAtom
}

// SliceList adapts a Go slice to RawList.
type SliceList []RawAtom

func (s SliceList) At(i int) RawAtom { return s[i] }

// Hook shapes, one per category. A nil hook clears the slot.
type (
	PrintHook          func(line []byte)
	BangHook           func(source []byte)
	FloatHook          func(source []byte, value float32)
	DoubleHook         func(source []byte, value float64)
	SymbolHook         func(source, symbol []byte)
	ListHook           func(source []byte, argc int32, argv RawList)
	MessageHook        func(source, selector []byte, argc int32, argv RawList)
	NoteOnHook         func(channel, pitch, velocity int32)
	ControlChangeHook  func(channel, controller, value int32)
	ProgramChangeHook  func(channel, value int32)
	PitchBendHook      func(channel, value int32)
	AfterTouchHook     func(channel, value int32)
	PolyAfterTouchHook func(channel, pitch, value int32)
	MIDIByteHook       func(port, value int32)
)

// InstanceTable is the engine's process-wide instance registry plus the
// per-thread current-instance selector.
type InstanceTable interface {
	NewInstance() (Handle, error)
	FreeInstance(h Handle)
	SetInstance(h Handle)
	ThisInstance() Handle
	MainInstance() Handle
	NumInstances() int
}

// HookTable holds one process-wide slot per category.
type HookTable interface {
	SetPrintHook(PrintHook)
	SetBangHook(BangHook)
	SetFloatHook(FloatHook)
	SetDoubleHook(DoubleHook)
	SetSymbolHook(SymbolHook)
	SetListHook(ListHook)
	SetMessageHook(MessageHook)
	SetNoteOnHook(NoteOnHook)
	SetControlChangeHook(ControlChangeHook)
	SetProgramChangeHook(ProgramChangeHook)
	SetPitchBendHook(PitchBendHook)
	SetAfterTouchHook(AfterTouchHook)
	SetPolyAfterTouchHook(PolyAfterTouchHook)
	SetMIDIByteHook(MIDIByteHook)
}

// MessageBuffer is the current instance's outgoing message buffer.
// Add calls are not bounds checked by the interface contract.
type MessageBuffer interface {
	StartMessage(capacity int) error
	AddFloat(v float32)
	AddDouble(v float64)
	AddSymbol(s string)
	FinishList(receiver string) error
	FinishMessage(receiver, selector string) error
}

// Sender delivers single values and MIDI input to the current instance.
type Sender interface {
	SendBang(receiver string) error
	SendFloat(receiver string, v float32) error
	SendDouble(receiver string, v float64) error
	SendSymbol(receiver, symbol string) error
	SendNoteOn(channel, pitch, velocity int32) error
	SendControlChange(channel, controller, value int32) error
	SendProgramChange(channel, value int32) error
	SendPitchBend(channel, value int32) error
	SendAfterTouch(channel, value int32) error
	SendPolyAfterTouch(channel, pitch, value int32) error
	SendMIDIByte(port, value int32) error
	SendSysex(port, value int32) error
	SendSysRealtime(port, value int32) error
}

// Receivers manages host-side receiver bindings and drains queued events
// through the installed hooks.
type Receivers interface {
	Bind(name string) (Binding, error)
	Unbind(b Binding)
	Exists(name string) bool
	PollMessages()
	PollMIDIMessages()
}

// Processor runs audio for the current instance.
type Processor interface {
	InitAudio(inputChannels, outputChannels, sampleRate int) error
	SetDSP(on bool) error
	BlockSize() int
	ProcessFloat(ticks int, in, out []float32) error
	ProcessDouble(ticks int, in, out []float64) error
	ProcessShort(ticks int, in, out []int16) error
	ProcessRaw(in, out []float32) error
	ProcessRawDouble(in, out []float64) error
	ProcessRawShort(in, out []int16) error
}

// Patches opens and closes patch files in the current instance.
type Patches interface {
	OpenPatch(name, dir string) (Patch, error)
	ClosePatch(p Patch)
	DollarZero(p Patch) int
	AddSearchPath(dir string)
	ClearSearchPaths()
}

// Engine is the complete native surface.
type Engine interface {
	InstanceTable
	HookTable
	MessageBuffer
	Sender
	Receivers
	Processor
	Patches
}
