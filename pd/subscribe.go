package pd

import (
	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
)

// ReceiverHandle identifies one binding made by StartListening.
type ReceiverHandle = engine.Binding

// Subscribe starts listening to source. Sources already subscribed are
// left as they are.
func (p *Pd) Subscribe(source string) error {
	return p.SubscribeMany(source)
}

// SubscribeMany subscribes to each source not yet subscribed.
func (p *Pd) SubscribeMany(sources ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseReceive); err != nil {
		return err
	}
	defer p.activate().release()
	for _, src := range sources {
		if _, ok := p.subscriptions[src]; ok {
			continue
		}
		b, err := p.eng.Bind(src)
		if err != nil {
			return engineErr(errors.PhaseReceive, src, err)
		}
		p.subscriptions[src] = b
	}
	return nil
}

// Unsubscribe stops listening to source.
func (p *Pd) Unsubscribe(source string) {
	p.UnsubscribeMany(source)
}

// UnsubscribeMany stops listening to each source.
func (p *Pd) UnsubscribeMany(sources ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	defer p.activate().release()
	for _, src := range sources {
		if b, ok := p.subscriptions[src]; ok {
			p.eng.Unbind(b)
			delete(p.subscriptions, src)
		}
	}
}

// UnsubscribeAll stops listening to every subscribed source.
func (p *Pd) UnsubscribeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	defer p.activate().release()
	p.unsubscribeAllLocked()
}

func (p *Pd) unsubscribeAllLocked() {
	for src, b := range p.subscriptions {
		p.eng.Unbind(b)
		delete(p.subscriptions, src)
	}
}

// Subscribed reports whether source is subscribed through Subscribe.
func (p *Pd) Subscribed(source string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subscriptions[source]
	return ok
}

// StartListening binds source and hands the binding to the caller, who
// must pass it to StopListening. Unlike Subscribe it binds again on every
// call.
func (p *Pd) StartListening(source string) (ReceiverHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseReceive); err != nil {
		return 0, err
	}
	defer p.activate().release()
	b, err := p.eng.Bind(source)
	if err != nil {
		return 0, engineErr(errors.PhaseReceive, source, err)
	}
	return b, nil
}

// StopListening removes a binding made by StartListening. A zero handle is
// ignored.
func (p *Pd) StopListening(h ReceiverHandle) {
	if h == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	defer p.activate().release()
	p.eng.Unbind(h)
}

// SourceExists reports whether anything in the instance listens on source.
func (p *Pd) SourceExists(source string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.usable(errors.PhaseReceive); err != nil {
		return false, err
	}
	defer p.activate().release()
	return p.eng.Exists(source), nil
}
