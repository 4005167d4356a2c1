// Package metrics exposes Prometheus collectors for the engine bridge.
//
// A nil *Collector is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pdruntime"

// Collector groups the bridge's metrics.
type Collector struct {
	instances     prometheus.Gauge
	switches      prometheus.Counter
	registrations *prometheus.CounterVec
	released      *prometheus.CounterVec
	dispatched    *prometheus.CounterVec
	sent          *prometheus.CounterVec
	builderErrors *prometheus.CounterVec
	processed     prometheus.Counter
}

// New creates a collector and registers it with reg. A nil reg registers
// with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Engine instances currently owned by Pd values.",
		}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_switches_total",
			Help:      "Times an operation had to switch the thread's current instance.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_registrations_total",
			Help:      "Hook adapters installed, by category.",
		}, []string{"category"}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_entries_released_total",
			Help:      "Callback registry entries destroyed, by kind.",
		}, []string{"kind"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Engine events delivered to Go callbacks, by category.",
		}, []string{"category"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages sent into the engine, by kind.",
		}, []string{"kind"}),
		builderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_builder_errors_total",
			Help:      "Message builder calls rejected, by error kind.",
		}, []string{"kind"}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_ticks_total",
			Help:      "Audio ticks processed through audio contexts.",
		}),
	}
	for _, col := range []prometheus.Collector{
		c.instances, c.switches, c.registrations, c.released,
		c.dispatched, c.sent, c.builderErrors, c.processed,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// InstanceOpened records a new owned instance.
func (c *Collector) InstanceOpened() {
	if c != nil {
		c.instances.Inc()
	}
}

// InstanceClosed records a released instance.
func (c *Collector) InstanceClosed() {
	if c != nil {
		c.instances.Dec()
	}
}

// ContextSwitch records one switch of the current instance.
func (c *Collector) ContextSwitch() {
	if c != nil {
		c.switches.Inc()
	}
}

// HookRegistered records an adapter installed for category.
func (c *Collector) HookRegistered(category string) {
	if c != nil {
		c.registrations.WithLabelValues(category).Inc()
	}
}

// EntryReleased records one destroyed registry entry.
func (c *Collector) EntryReleased(kind string) {
	if c != nil {
		c.released.WithLabelValues(kind).Inc()
	}
}

// EventDispatched records an event handed to a Go callback.
func (c *Collector) EventDispatched(category string) {
	if c != nil {
		c.dispatched.WithLabelValues(category).Inc()
	}
}

// MessageSent records a message sent into the engine.
func (c *Collector) MessageSent(kind string) {
	if c != nil {
		c.sent.WithLabelValues(kind).Inc()
	}
}

// BuilderError records a rejected message builder call.
func (c *Collector) BuilderError(kind string) {
	if c != nil {
		c.builderErrors.WithLabelValues(kind).Inc()
	}
}

// TicksProcessed records audio ticks.
func (c *Collector) TicksProcessed(ticks int) {
	if c != nil && ticks > 0 {
		c.processed.Add(float64(ticks))
	}
}
