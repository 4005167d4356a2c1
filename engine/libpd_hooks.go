//go:build libpd && cgo

package engine

/*
#include "z_libpd.h"
*/
import "C"

// Entry points the C trampolines in libpd_bridge.c call. libpd invokes them
// from libpd_queued_receive_* on the polling thread.

func hooks() simHooks {
	if libpdEng == nil {
		return simHooks{}
	}
	return libpdEng.snapshot()
}

//export pdrtPrint
func pdrtPrint(line *C.char) {
	if h := hooks().print; h != nil {
		h(goBytes(line))
	}
}

//export pdrtBang
func pdrtBang(recv *C.char) {
	if h := hooks().bang; h != nil {
		h(goBytes(recv))
	}
}

//export pdrtFloat
func pdrtFloat(recv *C.char, v C.float) {
	if h := hooks().float; h != nil {
		h(goBytes(recv), float32(v))
	}
}

//export pdrtDouble
func pdrtDouble(recv *C.char, v C.double) {
	if h := hooks().double; h != nil {
		h(goBytes(recv), float64(v))
	}
}

//export pdrtSymbol
func pdrtSymbol(recv, sym *C.char) {
	if h := hooks().symbol; h != nil {
		h(goBytes(recv), goBytes(sym))
	}
}

//export pdrtList
func pdrtList(recv *C.char, argc C.int, argv *C.t_atom) {
	if h := hooks().list; h != nil {
		h(goBytes(recv), int32(argc), cList{argv: argv})
	}
}

//export pdrtMessage
func pdrtMessage(recv, sel *C.char, argc C.int, argv *C.t_atom) {
	if h := hooks().message; h != nil {
		h(goBytes(recv), goBytes(sel), int32(argc), cList{argv: argv})
	}
}

//export pdrtNoteOn
func pdrtNoteOn(ch, pitch, vel C.int) {
	if h := hooks().noteOn; h != nil {
		h(int32(ch), int32(pitch), int32(vel))
	}
}

//export pdrtControlChange
func pdrtControlChange(ch, ctl, v C.int) {
	if h := hooks().controlChange; h != nil {
		h(int32(ch), int32(ctl), int32(v))
	}
}

//export pdrtProgramChange
func pdrtProgramChange(ch, v C.int) {
	if h := hooks().programChange; h != nil {
		h(int32(ch), int32(v))
	}
}

//export pdrtPitchBend
func pdrtPitchBend(ch, v C.int) {
	if h := hooks().pitchBend; h != nil {
		h(int32(ch), int32(v))
	}
}

//export pdrtAfterTouch
func pdrtAfterTouch(ch, v C.int) {
	if h := hooks().afterTouch; h != nil {
		h(int32(ch), int32(v))
	}
}

//export pdrtPolyAfterTouch
func pdrtPolyAfterTouch(ch, pitch, v C.int) {
	if h := hooks().polyAfterTouch; h != nil {
		h(int32(ch), int32(pitch), int32(v))
	}
}

//export pdrtMIDIByte
func pdrtMIDIByte(port, v C.int) {
	if h := hooks().midiByte; h != nil {
		h(int32(port), int32(v))
	}
}
