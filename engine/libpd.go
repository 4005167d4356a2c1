//go:build libpd && cgo

package engine

/*
#cgo CFLAGS: -DPDINSTANCE -DPDTHREADS -I/usr/local/include/libpd
#cgo LDFLAGS: -lpd
#include <stdlib.h>
#include <string.h>
#include "z_libpd.h"
#include "util/z_queued.h"

void pdrt_install_hook(int category, int on);
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// Libpd is the Engine backed by the linked libpd library. libpd keeps its
// state in process globals, so there is exactly one Libpd per process.
type Libpd struct {
	hooks  libpdHooks
	shapes map[Handle]audioShape
	mu     sync.Mutex
}

type audioShape struct {
	inputs, outputs int
}

type libpdHooks struct {
	simHooks
	mu sync.RWMutex
}

var (
	libpdOnce sync.Once
	libpdEng  *Libpd
	libpdErr  error
)

// NewLibpd initializes libpd with queued hooks on first use and returns the
// process-wide engine.
func NewLibpd() (*Libpd, error) {
	libpdOnce.Do(func() {
		if rc := C.libpd_queued_init(); rc != 0 && rc != -1 {
			libpdErr = fmt.Errorf("%w: libpd_queued_init returned %d", ErrAllocation, int(rc))
			return
		}
		libpdEng = &Libpd{shapes: make(map[Handle]audioShape)}
		Logger().Info("libpd initialized", zap.Int("block_size", int(C.libpd_blocksize())))
	})
	return libpdEng, libpdErr
}

func cstr(s string) *C.char { return C.CString(s) }

func status(rc C.int, what string) error {
	if rc != 0 {
		return fmt.Errorf("%w: %s returned %d", ErrRange, what, int(rc))
	}
	return nil
}

// Instance table

func (l *Libpd) NewInstance() (Handle, error) {
	p := C.libpd_new_instance()
	if p == nil {
		return NoInstance, ErrAllocation
	}
	return Handle(unsafe.Pointer(p)), nil
}

func (l *Libpd) FreeInstance(h Handle) {
	if h == NoInstance || h == l.MainInstance() {
		return
	}
	l.mu.Lock()
	delete(l.shapes, h)
	l.mu.Unlock()
	C.libpd_free_instance((*C.t_pdinstance)(unsafe.Pointer(h)))
}

func (l *Libpd) SetInstance(h Handle) {
	C.libpd_set_instance((*C.t_pdinstance)(unsafe.Pointer(h)))
}

func (l *Libpd) ThisInstance() Handle {
	return Handle(unsafe.Pointer(C.libpd_this_instance()))
}

func (l *Libpd) MainInstance() Handle {
	return Handle(unsafe.Pointer(C.libpd_main_instance()))
}

func (l *Libpd) NumInstances() int {
	return int(C.libpd_num_instances())
}

// Hook table

func (l *Libpd) set(c Category, on bool, fn func(h *simHooks)) {
	l.hooks.mu.Lock()
	fn(&l.hooks.simHooks)
	l.hooks.mu.Unlock()
	flag := C.int(0)
	if on {
		flag = 1
	}
	C.pdrt_install_hook(C.int(c), flag)
}

func (l *Libpd) SetPrintHook(h PrintHook) {
	l.set(CategoryPrint, h != nil, func(t *simHooks) { t.print = h })
}
func (l *Libpd) SetBangHook(h BangHook) {
	l.set(CategoryBang, h != nil, func(t *simHooks) { t.bang = h })
}
func (l *Libpd) SetFloatHook(h FloatHook) {
	l.set(CategoryFloat, h != nil, func(t *simHooks) { t.float = h })
}
func (l *Libpd) SetDoubleHook(h DoubleHook) {
	l.set(CategoryDouble, h != nil, func(t *simHooks) { t.double = h })
}
func (l *Libpd) SetSymbolHook(h SymbolHook) {
	l.set(CategorySymbol, h != nil, func(t *simHooks) { t.symbol = h })
}
func (l *Libpd) SetListHook(h ListHook) {
	l.set(CategoryList, h != nil, func(t *simHooks) { t.list = h })
}
func (l *Libpd) SetMessageHook(h MessageHook) {
	l.set(CategoryMessage, h != nil, func(t *simHooks) { t.message = h })
}
func (l *Libpd) SetNoteOnHook(h NoteOnHook) {
	l.set(CategoryNoteOn, h != nil, func(t *simHooks) { t.noteOn = h })
}
func (l *Libpd) SetControlChangeHook(h ControlChangeHook) {
	l.set(CategoryControlChange, h != nil, func(t *simHooks) { t.controlChange = h })
}
func (l *Libpd) SetProgramChangeHook(h ProgramChangeHook) {
	l.set(CategoryProgramChange, h != nil, func(t *simHooks) { t.programChange = h })
}
func (l *Libpd) SetPitchBendHook(h PitchBendHook) {
	l.set(CategoryPitchBend, h != nil, func(t *simHooks) { t.pitchBend = h })
}
func (l *Libpd) SetAfterTouchHook(h AfterTouchHook) {
	l.set(CategoryAfterTouch, h != nil, func(t *simHooks) { t.afterTouch = h })
}
func (l *Libpd) SetPolyAfterTouchHook(h PolyAfterTouchHook) {
	l.set(CategoryPolyAfterTouch, h != nil, func(t *simHooks) { t.polyAfterTouch = h })
}
func (l *Libpd) SetMIDIByteHook(h MIDIByteHook) {
	l.set(CategoryMIDIByte, h != nil, func(t *simHooks) { t.midiByte = h })
}

// Message buffer

func (l *Libpd) StartMessage(capacity int) error {
	if capacity < 0 || C.libpd_start_message(C.int(capacity)) != 0 {
		return fmt.Errorf("%w: message buffer of %d elements", ErrAllocation, capacity)
	}
	return nil
}

func (l *Libpd) AddFloat(v float32)  { C.libpd_add_float(C.float(v)) }
func (l *Libpd) AddDouble(v float64) { C.libpd_add_double(C.double(v)) }

func (l *Libpd) AddSymbol(s string) {
	cs := cstr(s)
	defer C.free(unsafe.Pointer(cs))
	C.libpd_add_symbol(cs)
}

func (l *Libpd) FinishList(receiver string) error {
	cr := cstr(receiver)
	defer C.free(unsafe.Pointer(cr))
	return noReceiver(C.libpd_finish_list(cr), receiver)
}

func (l *Libpd) FinishMessage(receiver, selector string) error {
	cr, cs := cstr(receiver), cstr(selector)
	defer C.free(unsafe.Pointer(cr))
	defer C.free(unsafe.Pointer(cs))
	return noReceiver(C.libpd_finish_message(cr, cs), receiver)
}

func noReceiver(rc C.int, receiver string) error {
	if rc != 0 {
		return fmt.Errorf("%w: %q", ErrNoReceiver, receiver)
	}
	return nil
}

// Sender

func (l *Libpd) SendBang(receiver string) error {
	cr := cstr(receiver)
	defer C.free(unsafe.Pointer(cr))
	return noReceiver(C.libpd_bang(cr), receiver)
}

func (l *Libpd) SendFloat(receiver string, v float32) error {
	cr := cstr(receiver)
	defer C.free(unsafe.Pointer(cr))
	return noReceiver(C.libpd_float(cr, C.float(v)), receiver)
}

func (l *Libpd) SendDouble(receiver string, v float64) error {
	cr := cstr(receiver)
	defer C.free(unsafe.Pointer(cr))
	return noReceiver(C.libpd_double(cr, C.double(v)), receiver)
}

func (l *Libpd) SendSymbol(receiver, symbol string) error {
	cr, cs := cstr(receiver), cstr(symbol)
	defer C.free(unsafe.Pointer(cr))
	defer C.free(unsafe.Pointer(cs))
	return noReceiver(C.libpd_symbol(cr, cs), receiver)
}

func (l *Libpd) SendNoteOn(channel, pitch, velocity int32) error {
	return status(C.libpd_noteon(C.int(channel), C.int(pitch), C.int(velocity)), "noteon")
}

func (l *Libpd) SendControlChange(channel, controller, value int32) error {
	return status(C.libpd_controlchange(C.int(channel), C.int(controller), C.int(value)), "controlchange")
}

func (l *Libpd) SendProgramChange(channel, value int32) error {
	return status(C.libpd_programchange(C.int(channel), C.int(value)), "programchange")
}

func (l *Libpd) SendPitchBend(channel, value int32) error {
	return status(C.libpd_pitchbend(C.int(channel), C.int(value)), "pitchbend")
}

func (l *Libpd) SendAfterTouch(channel, value int32) error {
	return status(C.libpd_aftertouch(C.int(channel), C.int(value)), "aftertouch")
}

func (l *Libpd) SendPolyAfterTouch(channel, pitch, value int32) error {
	return status(C.libpd_polyaftertouch(C.int(channel), C.int(pitch), C.int(value)), "polyaftertouch")
}

func (l *Libpd) SendMIDIByte(port, value int32) error {
	return status(C.libpd_midibyte(C.int(port), C.int(value)), "midibyte")
}

func (l *Libpd) SendSysex(port, value int32) error {
	return status(C.libpd_sysex(C.int(port), C.int(value)), "sysex")
}

func (l *Libpd) SendSysRealtime(port, value int32) error {
	return status(C.libpd_sysrealtime(C.int(port), C.int(value)), "sysrealtime")
}

// Receivers

func (l *Libpd) Bind(name string) (Binding, error) {
	cn := cstr(name)
	defer C.free(unsafe.Pointer(cn))
	p := C.libpd_bind(cn)
	if p == nil {
		return 0, fmt.Errorf("%w: bind %q", ErrAllocation, name)
	}
	return Binding(p), nil
}

func (l *Libpd) Unbind(b Binding) {
	if b != 0 {
		C.libpd_unbind(unsafe.Pointer(b))
	}
}

func (l *Libpd) Exists(name string) bool {
	cn := cstr(name)
	defer C.free(unsafe.Pointer(cn))
	return C.libpd_exists(cn) != 0
}

func (l *Libpd) PollMessages()     { C.libpd_queued_receive_pd_messages() }
func (l *Libpd) PollMIDIMessages() { C.libpd_queued_receive_midi_messages() }

// Processor

func (l *Libpd) InitAudio(inputChannels, outputChannels, sampleRate int) error {
	if inputChannels < 0 || outputChannels < 0 || sampleRate <= 0 {
		return fmt.Errorf("%w: in=%d out=%d rate=%d", ErrAudioConfig, inputChannels, outputChannels, sampleRate)
	}
	if rc := C.libpd_init_audio(C.int(inputChannels), C.int(outputChannels), C.int(sampleRate)); rc != 0 {
		return fmt.Errorf("%w: libpd_init_audio returned %d", ErrAudioConfig, int(rc))
	}
	l.mu.Lock()
	l.shapes[l.ThisInstance()] = audioShape{inputs: inputChannels, outputs: outputChannels}
	l.mu.Unlock()
	return nil
}

func (l *Libpd) SetDSP(on bool) error {
	v := C.float(0)
	if on {
		v = 1
	}
	pd, dsp := cstr("pd"), cstr("dsp")
	defer C.free(unsafe.Pointer(pd))
	defer C.free(unsafe.Pointer(dsp))
	if C.libpd_start_message(1) != 0 {
		return ErrAllocation
	}
	C.libpd_add_float(v)
	return noReceiver(C.libpd_finish_message(pd, dsp), "pd")
}

func (l *Libpd) BlockSize() int {
	return int(C.libpd_blocksize())
}

// checkBuffers verifies that in and out hold frames for the current
// instance's channel counts; libpd reads and writes them without bounds.
func (l *Libpd) checkBuffers(frames, inLen, outLen int) error {
	l.mu.Lock()
	shape := l.shapes[l.ThisInstance()]
	l.mu.Unlock()
	if inLen < frames*shape.inputs || outLen < frames*shape.outputs {
		return fmt.Errorf("%w: buffers %d/%d short of %d frames for %d/%d channels",
			ErrRange, inLen, outLen, frames, shape.inputs, shape.outputs)
	}
	return nil
}

func first[T any](s []T) *T {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}

func (l *Libpd) ProcessFloat(ticks int, in, out []float32) error {
	if err := l.checkBuffers(ticks*l.BlockSize(), len(in), len(out)); err != nil {
		return err
	}
	rc := C.libpd_process_float(C.int(ticks), (*C.float)(first(in)), (*C.float)(first(out)))
	return status(rc, "process_float")
}

func (l *Libpd) ProcessDouble(ticks int, in, out []float64) error {
	if err := l.checkBuffers(ticks*l.BlockSize(), len(in), len(out)); err != nil {
		return err
	}
	rc := C.libpd_process_double(C.int(ticks), (*C.double)(first(in)), (*C.double)(first(out)))
	return status(rc, "process_double")
}

func (l *Libpd) ProcessShort(ticks int, in, out []int16) error {
	if err := l.checkBuffers(ticks*l.BlockSize(), len(in), len(out)); err != nil {
		return err
	}
	rc := C.libpd_process_short(C.int(ticks), (*C.short)(first(in)), (*C.short)(first(out)))
	return status(rc, "process_short")
}

func (l *Libpd) ProcessRaw(in, out []float32) error {
	if err := l.checkBuffers(l.BlockSize(), len(in), len(out)); err != nil {
		return err
	}
	return status(C.libpd_process_raw((*C.float)(first(in)), (*C.float)(first(out))), "process_raw")
}

func (l *Libpd) ProcessRawDouble(in, out []float64) error {
	if err := l.checkBuffers(l.BlockSize(), len(in), len(out)); err != nil {
		return err
	}
	return status(C.libpd_process_raw_double((*C.double)(first(in)), (*C.double)(first(out))), "process_raw_double")
}

func (l *Libpd) ProcessRawShort(in, out []int16) error {
	if err := l.checkBuffers(l.BlockSize(), len(in), len(out)); err != nil {
		return err
	}
	return status(C.libpd_process_raw_short((*C.short)(first(in)), (*C.short)(first(out))), "process_raw_short")
}

// Patches

func (l *Libpd) OpenPatch(name, dir string) (Patch, error) {
	cn, cd := cstr(name), cstr(dir)
	defer C.free(unsafe.Pointer(cn))
	defer C.free(unsafe.Pointer(cd))
	p := C.libpd_openfile(cn, cd)
	if p == nil {
		return 0, fmt.Errorf("%w: %s in %s", ErrPatchOpen, name, dir)
	}
	return Patch(p), nil
}

func (l *Libpd) ClosePatch(p Patch) {
	if p != 0 {
		C.libpd_closefile(unsafe.Pointer(p))
	}
}

func (l *Libpd) DollarZero(p Patch) int {
	if p == 0 {
		return 0
	}
	return int(C.libpd_getdollarzero(unsafe.Pointer(p)))
}

func (l *Libpd) AddSearchPath(dir string) {
	cd := cstr(dir)
	defer C.free(unsafe.Pointer(cd))
	C.libpd_add_to_search_path(cd)
}

func (l *Libpd) ClearSearchPaths() {
	C.libpd_clear_search_path()
}

// cList walks an engine-owned atom array.
type cList struct {
	argv *C.t_atom
}

func (c cList) At(i int) RawAtom {
	a := (*C.t_atom)(unsafe.Add(unsafe.Pointer(c.argv), uintptr(i)*unsafe.Sizeof(*c.argv)))
	switch {
	case C.libpd_is_float(a) != 0:
		return RawAtom{Type: AtomFloat, Float: float64(C.libpd_get_double(a))}
	case C.libpd_is_symbol(a) != 0:
		s := C.libpd_get_symbol(a)
		return RawAtom{Type: AtomSymbol, Symbol: C.GoBytes(unsafe.Pointer(s), C.int(C.strlen(s)))}
	default:
		return RawAtom{Type: AtomOther}
	}
}

func goBytes(s *C.char) []byte {
	if s == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(s), C.int(C.strlen(s)))
}

func (l *Libpd) snapshot() simHooks {
	l.hooks.mu.RLock()
	defer l.hooks.mu.RUnlock()
	return l.hooks.simHooks
}

var _ Engine = (*Libpd)(nil)
