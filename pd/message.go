package pd

import (
	"go.uber.org/zap"

	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
)

// messageBuilder mirrors the engine's single outgoing message buffer. The
// engine trusts the caller on capacity; the builder makes sure no element
// is ever forwarded past it.
type messageBuilder struct {
	capacity  int
	count     int
	building  bool
	malformed bool
}

func (b *messageBuilder) start(capacity int) error {
	if capacity < 0 {
		return errors.InvalidCapacity(capacity)
	}
	if b.building {
		return errors.AlreadyBuilding(errors.PhaseMessage)
	}
	return nil
}

// begin enters Building once the engine accepted the buffer.
func (b *messageBuilder) begin(capacity int) {
	*b = messageBuilder{capacity: capacity, building: true}
}

// reserve claims one slot. An element that would not fit is refused and
// spoils the message.
func (b *messageBuilder) reserve() error {
	if !b.building {
		return errors.NotBuilding()
	}
	if b.count+1 > b.capacity {
		b.malformed = true
		return errors.OutOfRange(errors.PhaseMessage, b.count+1, b.capacity)
	}
	b.count++
	return nil
}

// finish checks a finish request. typed limits the element count to what a
// typed message can carry; a refused typed finish leaves the message open.
func (b *messageBuilder) finish(typed bool) error {
	if !b.building {
		return errors.NotBuilding()
	}
	if b.malformed {
		count, capacity := b.count, b.capacity
		b.reset()
		return errors.New(errors.PhaseMessage, errors.KindOutOfRange).
			Value(count).
			Detail("message dropped: an element past capacity %d was refused", capacity).
			Build()
	}
	if typed && b.count > engine.MaxTypedArgs {
		return errors.OutOfRange(errors.PhaseMessage, b.count, engine.MaxTypedArgs)
	}
	b.reset()
	return nil
}

func (b *messageBuilder) reset() {
	*b = messageBuilder{}
}

// StartMessage begins a message of up to capacity elements.
func (p *Pd) StartMessage(capacity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseMessage); err != nil {
		return err
	}
	if err := p.builder.start(capacity); err != nil {
		return p.builderErr(err)
	}

	defer p.activate().release()
	if err := p.eng.StartMessage(capacity); err != nil {
		return p.builderErr(errors.New(errors.PhaseMessage, errors.KindAllocation).
			Value(capacity).
			Cause(err).
			Detail("engine refused a buffer of %d elements", capacity).
			Build())
	}
	p.builder.begin(capacity)
	return nil
}

// AddFloat appends a single-precision float to the message in progress.
func (p *Pd) AddFloat(v float32) error {
	return p.add(func() { p.eng.AddFloat(v) })
}

// AddDouble appends a float to the message in progress.
func (p *Pd) AddDouble(v float64) error {
	return p.add(func() { p.eng.AddDouble(v) })
}

// AddSymbol appends a symbol to the message in progress.
func (p *Pd) AddSymbol(s string) error {
	return p.add(func() { p.eng.AddSymbol(s) })
}

func (p *Pd) add(forward func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.builder.reserve(); err != nil {
		return p.builderErr(err)
	}
	defer p.activate().release()
	forward()
	return nil
}

// FinishAsList sends the message in progress to receiver as a list.
func (p *Pd) FinishAsList(receiver string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.builder.finish(false); err != nil {
		return p.builderErr(err)
	}
	defer p.activate().release()
	if err := p.eng.FinishList(receiver); err != nil {
		return engineErr(errors.PhaseMessage, receiver, err)
	}
	p.metrics.MessageSent("list")
	return nil
}

// FinishAsTyped sends the message in progress to receiver with selector as
// its header. A typed message carries at most four elements; with more the
// call fails and the message stays open so it can still go out as a list.
func (p *Pd) FinishAsTyped(receiver, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.builder.finish(true); err != nil {
		return p.builderErr(err)
	}
	defer p.activate().release()
	if err := p.eng.FinishMessage(receiver, selector); err != nil {
		return engineErr(errors.PhaseMessage, receiver, err)
	}
	p.metrics.MessageSent("message")
	return nil
}

// Building reports whether a message is in progress.
func (p *Pd) Building() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.builder.building
}

// abandonMessage drops a message in progress. The engine buffer is simply
// left to be overwritten by the next start.
func (p *Pd) abandonMessage() {
	if p.builder.building {
		p.log.Debug("abandoning message in progress",
			zap.Int("count", p.builder.count), zap.Int("capacity", p.builder.capacity))
		p.builder.reset()
	}
}

func (p *Pd) builderErr(err error) error {
	p.metrics.BuilderError(string(errors.KindOf(err)))
	return err
}
