package engine

import "errors"

// Sentinel failures reported by engine calls. The native engine only
// returns a status code; these name the cause the code stands for.
var (
	ErrNoReceiver   = errors.New("engine: no receiver bound to name")
	ErrAllocation   = errors.New("engine: allocation refused")
	ErrRange        = errors.New("engine: argument out of range")
	ErrPatchOpen    = errors.New("engine: patch could not be opened")
	ErrAudioConfig  = errors.New("engine: invalid audio configuration")
	ErrNoCurrent    = errors.New("engine: no current instance on this thread")
	ErrBufferClosed = errors.New("engine: no message buffer started")
)
