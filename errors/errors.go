package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseInit      Phase = "init"      // engine and instance creation
	PhaseInstance  Phase = "instance"  // instance selection and teardown
	PhaseMessage   Phase = "message"   // incremental message building
	PhaseSend      Phase = "send"      // direct sends to receivers
	PhaseReceive   Phase = "receive"   // subscriptions and hook registration
	PhaseDecode    Phase = "decode"    // engine output to Go values
	PhaseProcess   Phase = "process"   // audio block processing and DSP state
	PhasePatch     Phase = "patch"     // patch open/close/eval
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseSearchDir Phase = "searchdir" // search path bookkeeping
)

// Kind categorizes the error
type Kind string

const (
	KindInitialization  Kind = "initialization_failed"
	KindAllocation      Kind = "allocation"
	KindInvalidCapacity Kind = "invalid_capacity"
	KindAlreadyBuilding Kind = "already_building"
	KindNotBuilding     Kind = "not_building"
	KindOutOfRange      Kind = "out_of_range"
	KindInvalidUTF8     Kind = "invalid_utf8"
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindDSPActive       Kind = "dsp_active"
	KindClosed          Kind = "closed"
	KindPatch           Kind = "patch"
	KindUnsupported     Kind = "unsupported"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Target   string // receiver, source or path involved
	Category string // hook category, when the error concerns one
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Target != "" {
		b.WriteString(" at ")
		b.WriteString(fmt.Sprintf("%q", e.Target))
	}

	if e.Category != "" {
		b.WriteString(" (")
		b.WriteString(e.Category)
		b.WriteString(" hook)")
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinels for message builder misuse. They carry no Phase so they match
// any error of the same Kind.
var (
	ErrInvalidCapacity = &Error{Kind: KindInvalidCapacity}
	ErrAlreadyBuilding = &Error{Kind: KindAlreadyBuilding}
	ErrNotBuilding     = &Error{Kind: KindNotBuilding}
	ErrOutOfRange      = &Error{Kind: KindOutOfRange}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrDSPActive       = &Error{Kind: KindDSPActive}
	ErrInvalidUTF8     = &Error{Kind: KindInvalidUTF8}
)

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Target sets the receiver, source or path involved
func (b *Builder) Target(name string) *Builder {
	b.err.Target = name
	return b
}

// Category sets the hook category name
func (b *Builder) Category(c string) *Builder {
	b.err.Category = c
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Initialization creates an engine or instance initialization error
func Initialization(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindInitialization,
		Detail: detail,
		Cause:  cause,
	}
}

// AllocationFailed creates an allocation failure error for a native buffer
func AllocationFailed(phase Phase, capacity int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("engine refused to allocate a buffer of %d elements", capacity),
		Value:  capacity,
	}
}

// InvalidCapacity creates an error for a negative message capacity
func InvalidCapacity(capacity int) *Error {
	return &Error{
		Phase:  PhaseMessage,
		Kind:   KindInvalidCapacity,
		Detail: fmt.Sprintf("capacity %d is negative", capacity),
		Value:  capacity,
	}
}

// AlreadyBuilding creates an error for starting a second message
func AlreadyBuilding(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyBuilding,
		Detail: "a message is already in progress",
	}
}

// NotBuilding creates an error for adding to or finishing a message that was never started
func NotBuilding() *Error {
	return &Error{
		Phase:  PhaseMessage,
		Kind:   KindNotBuilding,
		Detail: "no message in progress",
	}
}

// OutOfRange creates an error for an element count past a limit
func OutOfRange(phase Phase, count, limit int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfRange,
		Detail: fmt.Sprintf("element %d exceeds limit %d", count, limit),
		Value:  count,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error for text received from the engine
func InvalidUTF8(phase Phase, what string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("%s: invalid UTF-8 sequence: %x", what, preview),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// MissingReceiver creates an error for a send to a receiver nothing listens on
func MissingReceiver(phase Phase, receiver string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Target: receiver,
		Detail: "no receiver bound to this name",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Target: name,
		Detail: fmt.Sprintf("%s not found", what),
	}
}

// DSPActive creates an error for hook registration while audio is running
func DSPActive(category string) *Error {
	return &Error{
		Phase:    PhaseReceive,
		Kind:     KindDSPActive,
		Category: category,
		Detail:   "cannot register a hook while DSP is active",
	}
}

// Closed creates an error for use of a released instance
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Patch creates a patch lifecycle error
func Patch(detail, path string, cause error) *Error {
	return &Error{
		Phase:  PhasePatch,
		Kind:   KindPatch,
		Target: path,
		Detail: detail,
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
