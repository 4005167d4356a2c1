package pd

import (
	"github.com/wippyai/pd-runtime/errors"
	"github.com/wippyai/pd-runtime/metrics"
)

// ActivateAudio turns DSP on or off.
func (p *Pd) ActivateAudio(on bool) error {
	if on {
		return p.DSPOn()
	}
	return p.DSPOff()
}

// DSPOn starts audio computation. It does nothing if audio is active.
func (p *Pd) DSPOn() error {
	return p.setDSP(true)
}

// DSPOff stops audio computation. It does nothing if audio is inactive.
func (p *Pd) DSPOff() error {
	return p.setDSP(false)
}

func (p *Pd) setDSP(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseProcess); err != nil {
		return err
	}
	if p.audioActive == on {
		return nil
	}
	defer p.activate().release()
	if err := p.eng.SetDSP(on); err != nil {
		return engineErr(errors.PhaseProcess, "pd", err)
	}
	p.audioActive = on
	return nil
}

// AudioActive reports the DSP state as last set through this Pd. Messages
// sent to the engine's "pd" receiver directly are not tracked.
func (p *Pd) AudioActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audioActive
}

// AudioContext drives one instance from the audio goroutine: draining the
// event queues and processing blocks. It holds no Pd state, so it can be
// handed to another goroutine while the Pd keeps being used.
//
// Each call makes the instance current for its duration. Callbacks run on
// the calling goroutine during ReceiveMessages and ReceiveMIDIMessages.
type AudioContext struct {
	inst    *Instance
	metrics *metrics.Collector
}

// ReceiveMessages delivers queued messages to the registered callbacks.
func (a *AudioContext) ReceiveMessages() {
	if a.inst.closed.Load() {
		return
	}
	defer a.inst.activate().release()
	a.inst.eng.PollMessages()
}

// ReceiveMIDIMessages delivers queued MIDI to the registered callbacks.
func (a *AudioContext) ReceiveMIDIMessages() {
	if a.inst.closed.Load() {
		return
	}
	defer a.inst.activate().release()
	a.inst.eng.PollMIDIMessages()
}

// ProcessFloat runs ticks blocks over interleaved float32 buffers.
func (a *AudioContext) ProcessFloat(ticks int, in, out []float32) error {
	if err := a.usable(); err != nil {
		return err
	}
	defer a.inst.activate().release()
	return a.processed(ticks, a.inst.eng.ProcessFloat(ticks, in, out))
}

// ProcessDouble runs ticks blocks over interleaved float64 buffers.
func (a *AudioContext) ProcessDouble(ticks int, in, out []float64) error {
	if err := a.usable(); err != nil {
		return err
	}
	defer a.inst.activate().release()
	return a.processed(ticks, a.inst.eng.ProcessDouble(ticks, in, out))
}

// ProcessShort runs ticks blocks over interleaved int16 buffers.
func (a *AudioContext) ProcessShort(ticks int, in, out []int16) error {
	if err := a.usable(); err != nil {
		return err
	}
	defer a.inst.activate().release()
	return a.processed(ticks, a.inst.eng.ProcessShort(ticks, in, out))
}

// ProcessRaw runs one block over channel-major float32 buffers.
func (a *AudioContext) ProcessRaw(in, out []float32) error {
	if err := a.usable(); err != nil {
		return err
	}
	defer a.inst.activate().release()
	return a.processed(1, a.inst.eng.ProcessRaw(in, out))
}

// ProcessRawDouble runs one block over channel-major float64 buffers.
func (a *AudioContext) ProcessRawDouble(in, out []float64) error {
	if err := a.usable(); err != nil {
		return err
	}
	defer a.inst.activate().release()
	return a.processed(1, a.inst.eng.ProcessRawDouble(in, out))
}

// ProcessRawShort runs one block over channel-major int16 buffers.
func (a *AudioContext) ProcessRawShort(in, out []int16) error {
	if err := a.usable(); err != nil {
		return err
	}
	defer a.inst.activate().release()
	return a.processed(1, a.inst.eng.ProcessRawShort(in, out))
}

func (a *AudioContext) processed(ticks int, err error) error {
	if err != nil {
		return engineErr(errors.PhaseProcess, "", err)
	}
	a.metrics.TicksProcessed(ticks)
	return nil
}

func (a *AudioContext) usable() error {
	if a.inst.closed.Load() {
		return errors.Closed(errors.PhaseProcess, "pd instance")
	}
	return nil
}
