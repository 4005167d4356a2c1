package pd

import (
	"github.com/wippyai/pd-runtime/atom"
	"github.com/wippyai/pd-runtime/errors"
)

// send runs op against the instance and maps its failure.
func (p *Pd) send(kind, receiver string, op func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseSend); err != nil {
		return err
	}
	defer p.activate().release()
	if err := op(); err != nil {
		return engineErr(errors.PhaseSend, receiver, err)
	}
	p.metrics.MessageSent(kind)
	return nil
}

// SendBang sends a bang to receiver.
func (p *Pd) SendBang(receiver string) error {
	return p.send("bang", receiver, func() error { return p.eng.SendBang(receiver) })
}

// SendFloat sends a single-precision float to receiver.
func (p *Pd) SendFloat(receiver string, v float32) error {
	return p.send("float", receiver, func() error { return p.eng.SendFloat(receiver, v) })
}

// SendDouble sends a float to receiver.
func (p *Pd) SendDouble(receiver string, v float64) error {
	return p.send("float", receiver, func() error { return p.eng.SendDouble(receiver, v) })
}

// SendSymbol sends a symbol to receiver.
func (p *Pd) SendSymbol(receiver, symbol string) error {
	return p.send("symbol", receiver, func() error { return p.eng.SendSymbol(receiver, symbol) })
}

// SendList sends list to receiver. It shares the engine's message buffer
// with the message builder and fails while a message is in progress.
func (p *Pd) SendList(receiver string, list []atom.Atom) error {
	return p.sendAtoms("list", receiver, list, func() error { return p.eng.FinishList(receiver) })
}

// SendMessage sends a typed message with selector and args to receiver.
func (p *Pd) SendMessage(receiver, selector string, args []atom.Atom) error {
	return p.sendAtoms("message", receiver, args, func() error {
		return p.eng.FinishMessage(receiver, selector)
	})
}

func (p *Pd) sendAtoms(kind, receiver string, list []atom.Atom, finish func() error) error {
	for i, a := range list {
		if !a.Valid() {
			return errors.New(errors.PhaseSend, errors.KindInvalidInput).
				Target(receiver).Value(i).Detail("element %d is not a float or symbol", i).Build()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseSend); err != nil {
		return err
	}
	if p.builder.building {
		return p.builderErr(errors.AlreadyBuilding(errors.PhaseSend))
	}

	defer p.activate().release()
	if err := p.eng.StartMessage(len(list)); err != nil {
		return engineErr(errors.PhaseSend, receiver, err)
	}
	for _, a := range list {
		if f, ok := a.Float(); ok {
			p.eng.AddDouble(f)
		} else if s, ok := a.Symbol(); ok {
			p.eng.AddSymbol(s)
		}
	}
	if err := finish(); err != nil {
		return engineErr(errors.PhaseSend, receiver, err)
	}
	p.metrics.MessageSent(kind)
	return nil
}

// MIDI input. Channels count from 0 and encode the port as channel/16.
// Values outside the MIDI ranges are refused with KindOutOfRange.

// SendNoteOn sends a note-on. Velocity 0 is a note-off.
func (p *Pd) SendNoteOn(channel, pitch, velocity int32) error {
	return p.send("midi", "", func() error { return p.eng.SendNoteOn(channel, pitch, velocity) })
}

// SendControlChange sends a control change.
func (p *Pd) SendControlChange(channel, controller, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendControlChange(channel, controller, value) })
}

// SendProgramChange sends a program change.
func (p *Pd) SendProgramChange(channel, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendProgramChange(channel, value) })
}

// SendPitchBend sends a pitch bend in -8192..8191.
func (p *Pd) SendPitchBend(channel, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendPitchBend(channel, value) })
}

// SendAfterTouch sends channel aftertouch.
func (p *Pd) SendAfterTouch(channel, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendAfterTouch(channel, value) })
}

// SendPolyAfterTouch sends polyphonic aftertouch.
func (p *Pd) SendPolyAfterTouch(channel, pitch, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendPolyAfterTouch(channel, pitch, value) })
}

// SendMIDIByte sends a raw MIDI byte to port.
func (p *Pd) SendMIDIByte(port, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendMIDIByte(port, value) })
}

// SendSysex sends one sysex byte to port.
func (p *Pd) SendSysex(port, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendSysex(port, value) })
}

// SendSysRealtime sends one system realtime byte to port.
func (p *Pd) SendSysRealtime(port, value int32) error {
	return p.send("midi", "", func() error { return p.eng.SendSysRealtime(port, value) })
}
