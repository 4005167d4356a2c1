// Package pdruntime drives the Pure Data audio engine (libpd) from Go.
//
// The engine keeps all of its state in process-wide globals: one table of
// instances, a current-instance selector per OS thread, and a single hook
// slot per event category. This module wraps that surface so several
// instances can be driven from ordinary Go code without one call landing in
// the wrong instance, and without a hook outliving the closure it calls.
//
// # Architecture Overview
//
//	pdruntime/          Root package with block-size arithmetic
//	├── pd/             Pd, Instance, callbacks, message builder, audio context
//	├── engine/         Native boundary: libpd via cgo, or the simulated engine
//	├── atom/           Float and symbol atoms
//	├── resource/       Owning handle table for callback entries
//	├── metrics/        Prometheus collectors
//	├── config/         YAML and environment configuration
//	├── errors/         Structured error types
//	└── cmd/pdrun/      Command line runner and event monitor
//
// # Quick Start
//
//	eng := engine.NewSim() // or engine.NewLibpd() with -tags libpd
//
//	p, err := pd.InitAndConfigure(eng, 0, 2, 44100, pd.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	p.OnPrint(func(line string) { fmt.Println(line) })
//	p.OpenPatch("synth.pd")
//	p.DSPOn()
//
//	ac := p.AudioContext()
//	out := make([]float32, 2*pdruntime.BlockSize)
//	for {
//	    ac.ReceiveMessages()
//	    ac.ProcessFloat(1, nil, out)
//	}
//
// # Thread Safety
//
// Pd is safe for concurrent use. Each call selects its instance on the
// calling OS thread and restores the previous selection before returning.
// Hook slots are shared by every instance in the process: the most recent
// registration for a category receives events from all of them.
package pdruntime
