package engine

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const echoPatch = `#N canvas 0 50 450 300 12;
#X obj 30 30 r list_from_go;
#X obj 30 80 s list_from_pd;
#X obj 200 30 r \$0-local;
#X obj 200 80 print local;
#X connect 0 0 1 0;
#X connect 2 0 3 0;
`

func lockedSim(t *testing.T, cfg *SimConfig) *Sim {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)
	s := NewSimWithConfig(cfg)
	s.SetInstance(s.MainInstance())
	return s
}

func writePatch(t *testing.T, text string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.pd"), []byte(text), 0o644))
	return "echo.pd", dir
}

func TestSimInstances(t *testing.T) {
	s := lockedSim(t, &SimConfig{MaxInstances: 1})

	main := s.MainInstance()
	assert.Equal(t, main, s.ThisInstance())
	assert.Equal(t, 1, s.NumInstances())

	h, err := s.NewInstance()
	require.NoError(t, err)
	assert.NotEqual(t, main, h)
	assert.Equal(t, main, s.ThisInstance(), "creating an instance does not select it")

	_, err = s.NewInstance()
	assert.ErrorIs(t, err, ErrAllocation)

	s.SetInstance(h)
	assert.Equal(t, h, s.ThisInstance())
	s.SetInstance(main)
	s.FreeInstance(h)
	assert.Equal(t, 1, s.NumInstances())

	s.FreeInstance(main)
	assert.Equal(t, 1, s.NumInstances(), "main instance is never freed")
}

func TestSimSelectorIsPerThread(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("thread ids only on linux")
	}
	s := lockedSim(t, nil)
	other, err := s.NewInstance()
	require.NoError(t, err)

	seen := make(chan Handle)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		before := s.ThisInstance()
		s.SetInstance(other)
		seen <- before
	}()
	assert.Equal(t, s.MainInstance(), <-seen, "fresh threads start on the main instance")
	assert.Equal(t, s.MainInstance(), s.ThisInstance())
}

func TestSimNoCurrentPanics(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	s := NewSim()
	s.SetInstance(NoInstance)
	assert.PanicsWithValue(t, ErrNoCurrent, func() { _ = s.SendBang("x") })
}

func TestSimMessageBuffer(t *testing.T) {
	s := lockedSim(t, &SimConfig{MaxMessageCapacity: 8})

	assert.ErrorIs(t, s.StartMessage(9), ErrAllocation)
	assert.ErrorIs(t, s.FinishList("r"), ErrBufferClosed)

	b, err := s.Bind("r")
	require.NoError(t, err)
	defer s.Unbind(b)

	var got []RawAtom
	s.SetListHook(func(_ []byte, argc int32, argv RawList) {
		for i := 0; i < int(argc); i++ {
			got = append(got, argv.At(i))
		}
	})

	require.NoError(t, s.StartMessage(2))
	s.AddFloat(1)
	s.AddSymbol("a")
	s.AddDouble(3)
	assert.EqualValues(t, 1, s.Overflows())
	require.NoError(t, s.FinishList("r"))
	s.PollMessages()

	require.Len(t, got, 2)
	assert.Equal(t, AtomFloat, got[0].Type)
	assert.Equal(t, "a", string(got[1].Symbol))
}

func TestSimHostEventClassification(t *testing.T) {
	tests := []struct {
		selector string
		args     []RawAtom
		want     Category
	}{
		{"bang", nil, CategoryBang},
		{"float", []RawAtom{{Type: AtomFloat, Float: 1}}, CategoryFloat},
		{"symbol", []RawAtom{{Type: AtomSymbol, Symbol: []byte("x")}}, CategorySymbol},
		{"list", []RawAtom{{Type: AtomFloat}, {Type: AtomFloat}}, CategoryList},
		{"set", []RawAtom{{Type: AtomFloat}}, CategoryMessage},
		{"float", nil, CategoryMessage},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Equal(t, tt.want, hostEvent("src", tt.selector, tt.args).category)
		})
	}
}

func TestSimDoublePreferredOverFloat(t *testing.T) {
	s := lockedSim(t, nil)
	_, err := s.Bind("n")
	require.NoError(t, err)

	var f32 float32
	var f64 float64
	s.SetFloatHook(func(_ []byte, v float32) { f32 = v })
	require.NoError(t, s.SendDouble("n", 0.5))
	s.PollMessages()
	assert.Equal(t, float32(0.5), f32)

	s.SetDoubleHook(func(_ []byte, v float64) { f64 = v })
	require.NoError(t, s.SendDouble("n", 0.25))
	s.PollMessages()
	assert.Equal(t, 0.25, f64)
	assert.Equal(t, float32(0.5), f32)
}

func TestSimNoReceiver(t *testing.T) {
	s := lockedSim(t, nil)
	assert.ErrorIs(t, s.SendBang("nobody"), ErrNoReceiver)

	b, err := s.Bind("somebody")
	require.NoError(t, err)
	assert.True(t, s.Exists("somebody"))
	s.Unbind(b)
	assert.False(t, s.Exists("somebody"))
}

func TestSimPatchRouting(t *testing.T) {
	s := lockedSim(t, nil)
	name, dir := writePatch(t, echoPatch)

	p, err := s.OpenPatch(name, dir)
	require.NoError(t, err)
	dz := s.DollarZero(p)
	assert.Equal(t, 1001, dz)
	assert.True(t, s.Exists("list_from_go"))

	_, err = s.Bind("list_from_pd")
	require.NoError(t, err)

	var src string
	var argc int32
	s.SetListHook(func(source []byte, n int32, _ RawList) {
		src = string(source)
		argc = n
	})
	var lines []string
	s.SetPrintHook(func(line []byte) { lines = append(lines, string(line)) })

	require.NoError(t, s.StartMessage(3))
	s.AddFloat(1)
	s.AddFloat(2)
	s.AddSymbol("three")
	require.NoError(t, s.FinishList("list_from_go"))
	require.NoError(t, s.SendFloat("1001-local", 7))
	s.PollMessages()

	assert.Equal(t, "list_from_pd", src)
	assert.EqualValues(t, 3, argc)
	assert.Equal(t, []string{"local: 7"}, lines)

	s.ClosePatch(p)
	assert.False(t, s.Exists("list_from_go"))
	assert.Equal(t, 0, s.DollarZero(p))
}

func TestSimOpenPatchMissing(t *testing.T) {
	s := lockedSim(t, nil)
	_, err := s.OpenPatch("missing.pd", t.TempDir())
	assert.ErrorIs(t, err, ErrPatchOpen)
}

func TestSimMIDI(t *testing.T) {
	s := lockedSim(t, &SimConfig{MIDIThrough: true})

	var notes [][3]int32
	var bytes [][2]int32
	s.SetNoteOnHook(func(ch, p, v int32) { notes = append(notes, [3]int32{ch, p, v}) })
	s.SetMIDIByteHook(func(port, v int32) { bytes = append(bytes, [2]int32{port, v}) })

	require.NoError(t, s.SendNoteOn(0, 60, 100))
	assert.ErrorIs(t, s.SendNoteOn(0, 128, 100), ErrRange)
	assert.ErrorIs(t, s.SendNoteOn(-1, 60, 100), ErrRange)
	assert.ErrorIs(t, s.SendPitchBend(0, 8192), ErrRange)
	require.NoError(t, s.SendPitchBend(0, -8192))
	assert.ErrorIs(t, s.SendMIDIByte(0x1000, 0), ErrRange)
	require.NoError(t, s.SendSysRealtime(0, 0xf8))
	assert.ErrorIs(t, s.SendSysex(0, 0xf0), ErrRange)

	s.PollMessages()
	assert.Empty(t, notes, "MIDI is only drained by PollMIDIMessages")
	s.PollMIDIMessages()
	assert.Equal(t, [][3]int32{{0, 60, 100}}, notes)
	assert.Equal(t, [][2]int32{{0, 0xf8}}, bytes)
}

func TestSimProcess(t *testing.T) {
	s := lockedSim(t, &SimConfig{BlockSize: 4})
	assert.ErrorIs(t, s.InitAudio(1, 2, 0), ErrAudioConfig)
	require.NoError(t, s.InitAudio(1, 2, 48000))

	in := []float32{1, 2, 3, 4}
	out := make([]float32, 8)
	for i := range out {
		out[i] = -1
	}
	require.NoError(t, s.ProcessFloat(1, in, out))
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0, 0, 0}, out, "silent while DSP is off")

	require.NoError(t, s.SetDSP(true))
	require.NoError(t, s.ProcessFloat(1, in, out))
	assert.Equal(t, []float32{1, 0, 2, 0, 3, 0, 4, 0}, out)

	raw := make([]int16, 8)
	require.NoError(t, s.ProcessRawShort([]int16{5, 6, 7, 8}, raw))
	assert.Equal(t, []int16{5, 6, 7, 8, 0, 0, 0, 0}, raw)
}

func TestSimSearchPaths(t *testing.T) {
	s := lockedSim(t, nil)
	s.AddSearchPath("/a")
	s.AddSearchPath("/b")
	assert.Equal(t, []string{"/a", "/b"}, s.SearchPaths())
	s.ClearSearchPaths()
	assert.Empty(t, s.SearchPaths())
}

func TestSimHooked(t *testing.T) {
	s := NewSim()
	for _, c := range Categories() {
		assert.False(t, s.Hooked(c), c.String())
	}
	s.SetPolyAfterTouchHook(func(int32, int32, int32) {})
	assert.True(t, s.Hooked(CategoryPolyAfterTouch))
	s.SetPolyAfterTouchHook(nil)
	assert.False(t, s.Hooked(CategoryPolyAfterTouch))
}

func TestFormatPrint(t *testing.T) {
	f := func(v float64) RawAtom { return RawAtom{Type: AtomFloat, Float: v} }
	sym := func(v string) RawAtom { return RawAtom{Type: AtomSymbol, Symbol: []byte(v)} }
	tests := []struct {
		selector string
		args     []RawAtom
		want     string
	}{
		{"bang", nil, "p: bang"},
		{"float", []RawAtom{f(1.5)}, "p: 1.5"},
		{"list", []RawAtom{f(1), sym("a")}, "p: 1 a"},
		{"list", []RawAtom{sym("a"), f(1)}, "p: list a 1"},
		{"set", []RawAtom{f(2)}, "p: set 2"},
		{"symbol", []RawAtom{sym("x")}, "p: symbol x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatPrint("p", tt.selector, tt.args))
	}
}

func TestParsePatchSubpatch(t *testing.T) {
	text := `#N canvas 0 0 100 100 12;
#X obj 10 10 r in;
#N canvas 0 0 100 100 sub 0;
#X obj 10 10 r ignored;
#X restore 10 40 pd sub;
#X obj 10 70 s out;
#X connect 0 0 2 0;
`
	p := parsePatch("x.pd", text, 1001)
	require.Len(t, p.objects, 3)
	assert.Equal(t, "pd", p.objects[1].class)
	assert.Equal(t, []int{0}, p.receivers["in"])
	assert.NotContains(t, p.receivers, "ignored")
	assert.Equal(t, []int{2}, p.edges[0])
}
