//go:build libpd && cgo

package main

import (
	"github.com/wippyai/pd-runtime/config"
	"github.com/wippyai/pd-runtime/engine"
)

func newEngine(cfg *config.Config) (engine.Engine, error) {
	if cfg.Engine != config.EngineLibpd {
		return newSimEngine(cfg), nil
	}
	eng, err := engine.NewLibpd()
	if err != nil {
		return nil, err
	}
	return eng, nil
}
