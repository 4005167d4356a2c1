// Package engine is the boundary to the native audio-patch engine (libpd).
//
// The engine exposes its API as free functions that act on whichever
// instance is current on the calling OS thread, and reports events through
// one process-wide hook slot per event category. This package mirrors that
// surface as the Engine interface and does nothing to make it safe; the pd
// package builds the safety layer on top.
//
// # Implementations
//
//	Sim    - pure Go engine; default build, used by tests
//	Libpd  - cgo binding to libpd; built with -tags libpd
//
// # Engine Surface
//
//	InstanceTable  - new/free/set/this/main instance
//	HookTable      - one setter per event category, nil clears the slot
//	MessageBuffer  - start(capacity)/add/finish, no bounds checking
//	Sender         - direct sends and MIDI input
//	Receivers      - bind/unbind/exists and queue polling
//	Processor      - audio init, DSP switch and block processing
//	Patches        - open/close patch files, $0, search paths
//
// # Hook Arguments
//
// Hooks receive raw engine arguments: text as unvalidated bytes and lists
// as (argc, RawList). Byte slices handed to a hook are only valid for the
// duration of the call.
//
// # Thread Safety
//
// The current-instance selector is per OS thread. Callers that read it and
// act on it must lock their goroutine to the thread for the span
// (runtime.LockOSThread). Hook slots and the instance table are shared by
// all threads; setting a hook replaces it for every instance.
package engine
