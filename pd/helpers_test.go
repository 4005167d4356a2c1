package pd

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/pd-runtime/engine"
)

// lockThread pins the test goroutine to its OS thread so the engine's
// per-thread selector stays meaningful across assertions.
func lockThread(t *testing.T) {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)
}

func newSim(t *testing.T) *engine.Sim {
	t.Helper()
	lockThread(t)
	eng := engine.NewSim()
	eng.SetInstance(eng.MainInstance())
	return eng
}

func newPd(t *testing.T, eng engine.Engine, opts Options) *Pd {
	t.Helper()
	p, err := InitAndConfigure(eng, 0, 2, 44100, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// recordingEngine keeps the last hook installed per category so tests can
// call adapters the way the engine would. Float and note-on slot changes are
// logged together with the instance current at the time.
type recordingEngine struct {
	*engine.Sim
	bang    engine.BangHook
	list    engine.ListHook
	print   engine.PrintHook
	slotLog []slotChange
}

type slotChange struct {
	cat     engine.Category
	current engine.Handle
	cleared bool
}

func (r *recordingEngine) SetFloatHook(h engine.FloatHook) {
	r.slotLog = append(r.slotLog, slotChange{engine.CategoryFloat, r.ThisInstance(), h == nil})
	r.Sim.SetFloatHook(h)
}

func (r *recordingEngine) SetNoteOnHook(h engine.NoteOnHook) {
	r.slotLog = append(r.slotLog, slotChange{engine.CategoryNoteOn, r.ThisInstance(), h == nil})
	r.Sim.SetNoteOnHook(h)
}

func (r *recordingEngine) SetBangHook(h engine.BangHook) {
	r.bang = h
	r.Sim.SetBangHook(h)
}

func (r *recordingEngine) SetListHook(h engine.ListHook) {
	r.list = h
	r.Sim.SetListHook(h)
}

func (r *recordingEngine) SetPrintHook(h engine.PrintHook) {
	r.print = h
	r.Sim.SetPrintHook(h)
}
