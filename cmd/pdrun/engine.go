package main

import (
	"github.com/wippyai/pd-runtime/config"
	"github.com/wippyai/pd-runtime/engine"
)

func newSimEngine(cfg *config.Config) *engine.Sim {
	return engine.NewSimWithConfig(&engine.SimConfig{
		MaxInstances: cfg.Sim.MaxInstances,
		MIDIThrough:  cfg.Sim.MIDIThrough,
	})
}
