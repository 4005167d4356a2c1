//go:build !(libpd && cgo)

package main

import (
	"github.com/wippyai/pd-runtime/config"
	"github.com/wippyai/pd-runtime/engine"
	"github.com/wippyai/pd-runtime/errors"
)

func newEngine(cfg *config.Config) (engine.Engine, error) {
	if cfg.Engine == config.EngineLibpd {
		return nil, errors.Unsupported(errors.PhaseInit, "libpd engine (build with -tags libpd and cgo enabled)")
	}
	return newSimEngine(cfg), nil
}
