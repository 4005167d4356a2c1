// Package errors provides structured error types for pd-runtime.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the receiver or source name involved, the hook
// category when relevant, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMessage, errors.KindOutOfRange).
//		Target("synth").
//		Value(5).
//		Detail("typed message holds at most %d elements", 4).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfRange(errors.PhaseMessage, 4, 3)
//	err := errors.MissingReceiver(errors.PhaseSend, "synth")
//
// Protocol misuse of the message builder is reported through sentinel
// values that match with errors.Is:
//
//	if errors.Is(err, errors.ErrNotBuilding) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
