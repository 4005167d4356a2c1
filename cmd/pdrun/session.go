package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	pdruntime "github.com/wippyai/pd-runtime"
	"github.com/wippyai/pd-runtime/atom"
	"github.com/wippyai/pd-runtime/config"
	"github.com/wippyai/pd-runtime/metrics"
	"github.com/wippyai/pd-runtime/pd"
)

// event is one thing the patch sent out, flattened for display.
type event struct {
	at       time.Time
	category string
	source   string
	text     string
}

func (e event) String() string {
	var b strings.Builder
	b.WriteString(e.at.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-14s", e.category))
	if e.source != "" {
		b.WriteString(e.source)
		b.WriteString(": ")
	}
	b.WriteString(e.text)
	return b.String()
}

const eventBuffer = 1024

// session is one Pd instance plus the audio loop that drives it.
type session struct {
	pd       *pd.Pd
	audio    *pd.AudioContext
	log      *zap.Logger
	events   chan event
	commands chan func()
	dropped  atomic.Int64
	ticks   int
	in, out []float32
	period  time.Duration
}

// openSession creates the engine and instance described by cfg, registers
// every hook, opens patch (if not empty) and subscribes to listen.
func openSession(cfg *config.Config, log *zap.Logger, m *metrics.Collector, patch string, listen []string) (*session, error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	p, err := pd.InitAndConfigure(eng, cfg.Audio.InputChannels, cfg.Audio.OutputChannels, cfg.Audio.SampleRate, pd.Options{
		Logger:     log,
		Metrics:    m,
		HookPolicy: pd.HookPolicy{RejectDuringDSP: cfg.Hooks.RejectDuringDSP},
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		pd:       p,
		audio:    p.AudioContext(),
		log:      log,
		events:   make(chan event, eventBuffer),
		commands: make(chan func()),
	}
	s.sizeBuffers(cfg)

	if err := s.setup(cfg, patch, listen); err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) setup(cfg *config.Config, patch string, listen []string) error {
	if err := s.registerHooks(); err != nil {
		return err
	}
	if len(cfg.SearchPaths) > 0 {
		if err := s.pd.AddSearchPaths(cfg.SearchPaths...); err != nil {
			return err
		}
	}
	if patch != "" {
		if err := s.pd.OpenPatch(patch); err != nil {
			return err
		}
	}
	if err := s.pd.SubscribeMany(listen...); err != nil {
		return err
	}
	if cfg.Audio.DSP {
		return s.pd.DSPOn()
	}
	return nil
}

// sizeBuffers picks a wake-up period of roughly 10ms worth of ticks.
func (s *session) sizeBuffers(cfg *config.Config) {
	ticksPerWake := max(1, cfg.Audio.SampleRate/100/pdruntime.BlockSize)
	frames := ticksPerWake * pdruntime.BlockSize
	s.in = make([]float32, frames*cfg.Audio.InputChannels)
	s.out = make([]float32, frames*cfg.Audio.OutputChannels)

	channels := cfg.Audio.OutputChannels
	buf := len(s.out)
	if channels == 0 {
		channels, buf = 1, frames
	}
	s.ticks = pdruntime.CalculateTicks(channels, buf)
	s.period = time.Duration(float64(time.Second) * float64(frames) / float64(cfg.Audio.SampleRate))
}

func (s *session) emit(category, source, text string) {
	e := event{at: time.Now(), category: category, source: source, text: text}
	select {
	case s.events <- e:
	default:
		if s.dropped.Add(1) == 1 {
			s.log.Warn("event buffer full, dropping events")
		}
	}
}

func (s *session) registerHooks() error {
	p := s.pd
	regs := []error{
		p.OnPrint(func(line string) { s.emit("print", "", line) }),
		p.OnBang(func(src string) { s.emit("bang", src, "bang") }),
		p.OnDouble(func(src string, v float64) { s.emit("float", src, atom.Float(v).String()) }),
		p.OnSymbol(func(src, sym string) { s.emit("symbol", src, sym) }),
		p.OnList(func(src string, list []atom.Atom) { s.emit("list", src, atom.Format(list)) }),
		p.OnMessage(func(src, sel string, args []atom.Atom) {
			s.emit("message", src, strings.TrimSpace(sel+" "+atom.Format(args)))
		}),
		p.OnNoteOn(func(ch, pitch, vel int32) {
			s.emit("noteon", "", fmt.Sprintf("ch=%d pitch=%d vel=%d", ch, pitch, vel))
		}),
		p.OnControlChange(func(ch, cc, v int32) {
			s.emit("controlchange", "", fmt.Sprintf("ch=%d cc=%d value=%d", ch, cc, v))
		}),
		p.OnProgramChange(func(ch, v int32) {
			s.emit("programchange", "", fmt.Sprintf("ch=%d program=%d", ch, v))
		}),
		p.OnPitchBend(func(ch, v int32) {
			s.emit("pitchbend", "", fmt.Sprintf("ch=%d value=%d", ch, v))
		}),
		p.OnAfterTouch(func(ch, v int32) {
			s.emit("aftertouch", "", fmt.Sprintf("ch=%d value=%d", ch, v))
		}),
		p.OnPolyAfterTouch(func(ch, pitch, v int32) {
			s.emit("polyaftertouch", "", fmt.Sprintf("ch=%d pitch=%d value=%d", ch, pitch, v))
		}),
		p.OnMIDIByte(func(port, v int32) {
			s.emit("midibyte", "", fmt.Sprintf("port=%d byte=0x%02x", port, v))
		}),
	}
	for _, err := range regs {
		if err != nil {
			return err
		}
	}
	return nil
}

// step drains the event queues and computes one buffer of audio.
func (s *session) step() error {
	s.audio.ReceiveMessages()
	s.audio.ReceiveMIDIMessages()
	return s.audio.ProcessFloat(s.ticks, s.in, s.out)
}

// loop calls step once per buffer period until ctx is done. Functions
// passed to do run between buffers on the same goroutine.
func (s *session) loop(ctx context.Context) error {
	t := time.NewTicker(s.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.commands:
			fn()
		case <-t.C:
			if err := s.step(); err != nil {
				return err
			}
		}
	}
}

// do runs fn on the loop goroutine and returns its error. It gives up when
// ctx is done.
func (s *session) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.commands <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send interprets text the way a message box does: a lone number is a
// float, "bang", "symbol x" and "list ..." keep their selector, text
// starting with a number is a list, and anything else is a typed message
// whose selector is the first word.
func (s *session) send(receiver, text string) error {
	atoms := atom.Parse(text)
	if len(atoms) == 0 {
		return s.pd.SendBang(receiver)
	}
	if v, ok := atoms[0].Float(); ok {
		if len(atoms) == 1 {
			return s.pd.SendDouble(receiver, v)
		}
		return s.pd.SendList(receiver, atoms)
	}
	sel, _ := atoms[0].Symbol()
	args := atoms[1:]
	switch {
	case sel == "bang" && len(args) == 0:
		return s.pd.SendBang(receiver)
	case sel == "symbol" && len(args) == 1 && args[0].IsSymbol():
		sym, _ := args[0].Symbol()
		return s.pd.SendSymbol(receiver, sym)
	case sel == "list":
		return s.pd.SendList(receiver, args)
	default:
		return s.pd.SendMessage(receiver, sel, args)
	}
}

// sendLine splits "receiver message..." and sends it.
func (s *session) sendLine(line string) error {
	receiver, text, _ := strings.Cut(strings.TrimSpace(line), " ")
	if receiver == "" {
		return fmt.Errorf("expected \"receiver [message]\"")
	}
	return s.send(receiver, text)
}

func (s *session) Close() error {
	if n := s.dropped.Load(); n > 0 {
		s.log.Warn("events dropped", zap.Int64("count", n))
	}
	return s.pd.Close()
}
