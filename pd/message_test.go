package pd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/pd-runtime/atom"
	"github.com/wippyai/pd-runtime/engine"
	pderrors "github.com/wippyai/pd-runtime/errors"
)

func TestMessageBuilderStates(t *testing.T) {
	var b messageBuilder

	require.ErrorIs(t, b.reserve(), pderrors.ErrNotBuilding)
	require.ErrorIs(t, b.finish(false), pderrors.ErrNotBuilding)
	require.ErrorIs(t, b.start(-1), pderrors.ErrInvalidCapacity)

	require.NoError(t, b.start(2))
	b.begin(2)
	require.ErrorIs(t, b.start(1), pderrors.ErrAlreadyBuilding)

	require.NoError(t, b.reserve())
	require.NoError(t, b.reserve())
	require.ErrorIs(t, b.reserve(), pderrors.ErrOutOfRange)
	assert.Equal(t, 2, b.count)
	assert.True(t, b.malformed)

	require.ErrorIs(t, b.finish(false), pderrors.ErrOutOfRange)
	assert.False(t, b.building, "a spoiled message is dropped on finish")
}

func TestMessageBuilderTypedLimit(t *testing.T) {
	var b messageBuilder
	b.begin(6)
	for range 5 {
		require.NoError(t, b.reserve())
	}
	require.ErrorIs(t, b.finish(true), pderrors.ErrOutOfRange)
	assert.True(t, b.building)
	require.NoError(t, b.finish(false))
	assert.False(t, b.building)
}

func TestMessageCapacityEnforced(t *testing.T) {
	eng := newSim(t)
	p := newPd(t, eng, Options{})
	require.NoError(t, p.Subscribe("sink"))

	require.NoError(t, p.StartMessage(2))
	require.NoError(t, p.AddFloat(1))
	require.NoError(t, p.AddSymbol("two"))

	err := p.AddDouble(3)
	require.ErrorIs(t, err, pderrors.ErrOutOfRange)
	assert.Equal(t, int64(0), eng.Overflows(), "refused element never reached the engine")

	err = p.FinishAsList("sink")
	require.ErrorIs(t, err, pderrors.ErrOutOfRange)
	assert.False(t, p.Building())

	require.ErrorIs(t, p.FinishAsList("sink"), pderrors.ErrNotBuilding)
}

func TestMessageZeroCapacity(t *testing.T) {
	eng := newSim(t)
	p := newPd(t, eng, Options{})
	require.NoError(t, p.Subscribe("sink"))

	require.NoError(t, p.StartMessage(0))
	require.ErrorIs(t, p.AddSymbol("x"), pderrors.ErrOutOfRange)
	require.ErrorIs(t, p.FinishAsTyped("sink", "set"), pderrors.ErrOutOfRange)

	require.NoError(t, p.StartMessage(0))
	require.NoError(t, p.FinishAsList("sink"))
}

func TestMessageStartErrors(t *testing.T) {
	lockThread(t)
	eng := engine.NewSimWithConfig(&engine.SimConfig{MaxMessageCapacity: 8})
	p := newPd(t, eng, Options{})

	require.ErrorIs(t, p.StartMessage(-1), pderrors.ErrInvalidCapacity)
	assert.False(t, p.Building())

	err := p.StartMessage(9)
	require.Error(t, err)
	assert.Equal(t, pderrors.KindAllocation, pderrors.KindOf(err))
	assert.False(t, p.Building())

	require.NoError(t, p.StartMessage(8))
	require.ErrorIs(t, p.StartMessage(1), pderrors.ErrAlreadyBuilding)
	assert.True(t, p.Building())
}

func TestTypedMessageLimit(t *testing.T) {
	eng := newSim(t)
	p := newPd(t, eng, Options{})
	require.NoError(t, p.Subscribe("sink"))

	var got []atom.Atom
	require.NoError(t, p.OnList(func(_ string, list []atom.Atom) { got = list }))

	require.NoError(t, p.StartMessage(5))
	for i := range 5 {
		require.NoError(t, p.AddFloat(float32(i)))
	}
	require.ErrorIs(t, p.FinishAsTyped("sink", "set"), pderrors.ErrOutOfRange)
	require.True(t, p.Building())

	require.NoError(t, p.FinishAsList("sink"))
	p.AudioContext().ReceiveMessages()
	assert.True(t, atom.EqualLists(atom.MustList(0, 1, 2, 3, 4), got))
}

func TestTypedMessageDelivered(t *testing.T) {
	eng := newSim(t)
	p := newPd(t, eng, Options{})
	require.NoError(t, p.Subscribe("sink"))

	var sel string
	var args []atom.Atom
	require.NoError(t, p.OnMessage(func(_, selector string, a []atom.Atom) {
		sel, args = selector, a
	}))

	require.NoError(t, p.StartMessage(2))
	require.NoError(t, p.AddSymbol("freq"))
	require.NoError(t, p.AddDouble(440))
	require.NoError(t, p.FinishAsTyped("sink", "set"))
	p.AudioContext().ReceiveMessages()

	assert.Equal(t, "set", sel)
	assert.True(t, atom.EqualLists(atom.MustList("freq", 440), args))
}

func TestFinishMissingReceiver(t *testing.T) {
	eng := newSim(t)
	p := newPd(t, eng, Options{})

	require.NoError(t, p.StartMessage(1))
	require.NoError(t, p.AddFloat(1))
	err := p.FinishAsList("nobody")
	require.ErrorIs(t, err, pderrors.ErrNotFound)
	assert.False(t, p.Building())
}

func TestSendListWhileBuilding(t *testing.T) {
	eng := newSim(t)
	p := newPd(t, eng, Options{})
	require.NoError(t, p.Subscribe("sink"))

	require.NoError(t, p.StartMessage(3))
	require.NoError(t, p.AddFloat(1))
	require.ErrorIs(t, p.SendList("sink", atom.MustList(1, 2)), pderrors.ErrAlreadyBuilding)
	require.ErrorIs(t, p.SendMessage("sink", "set", nil), pderrors.ErrAlreadyBuilding)

	require.NoError(t, p.AddFloat(2))
	require.NoError(t, p.FinishAsList("sink"))
	require.NoError(t, p.SendList("sink", atom.MustList(1, 2)))
}

func TestPatchOperationsAbandonMessage(t *testing.T) {
	eng := newSim(t)
	p := newPd(t, eng, Options{})

	require.NoError(t, p.StartMessage(1))
	require.NoError(t, p.OpenPatch("testdata/echo.pd"))
	assert.False(t, p.Building())

	require.NoError(t, p.StartMessage(1))
	require.NoError(t, p.EvalPatch("#N canvas 0 0 100 100 12;\n"))
	assert.False(t, p.Building())
	require.ErrorIs(t, p.AddFloat(1), pderrors.ErrNotBuilding)
}
