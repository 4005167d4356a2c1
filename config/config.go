// Package config loads pdrun settings from a YAML file with environment
// overrides.
//
// Values are resolved in order: built-in defaults, then the YAML file, then
// PD_* environment variables.
package config

import (
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/pd-runtime/errors"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "PD_"

// Engine backends.
const (
	EngineSim   = "sim"
	EngineLibpd = "libpd"
)

// Config is the complete runner configuration.
type Config struct {
	Engine      string        `yaml:"engine" env:"ENGINE"`
	SearchPaths []string      `yaml:"search_paths" env:"SEARCH_PATHS" envSeparator:":"`
	Audio       AudioConfig   `yaml:"audio" envPrefix:"AUDIO_"`
	Hooks       HookConfig    `yaml:"hooks" envPrefix:"HOOKS_"`
	Sim         SimConfig     `yaml:"sim" envPrefix:"SIM_"`
	Log         LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Metrics     MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

// AudioConfig describes the audio device shape.
type AudioConfig struct {
	InputChannels  int  `yaml:"input_channels" env:"INPUT_CHANNELS"`
	OutputChannels int  `yaml:"output_channels" env:"OUTPUT_CHANNELS"`
	SampleRate     int  `yaml:"sample_rate" env:"SAMPLE_RATE"`
	DSP            bool `yaml:"dsp" env:"DSP"`
}

// HookConfig maps to pd.HookPolicy.
type HookConfig struct {
	RejectDuringDSP bool `yaml:"reject_during_dsp" env:"REJECT_DURING_DSP"`
}

// SimConfig tunes the simulated engine.
type SimConfig struct {
	MaxInstances int  `yaml:"max_instances" env:"MAX_INSTANCES"`
	MIDIThrough  bool `yaml:"midi_through" env:"MIDI_THROUGH"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
	Path    string `yaml:"path" env:"PATH"`
}

// Default returns the built-in configuration: the simulated engine, stereo
// output at 44.1 kHz, info logging.
func Default() *Config {
	return &Config{
		Engine: EngineSim,
		Audio: AudioConfig{
			OutputChannels: 2,
			SampleRate:     44100,
		},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
				Target(path).Cause(err).Detail("read config file").Build()
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Target(path).Cause(err).Detail("parse config file").Build()
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any PD_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse environment")
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Target(field).Detail(format, args...).Build()
	}
	if !slices.Contains([]string{EngineSim, EngineLibpd}, c.Engine) {
		return invalid("engine", "unknown engine %q, want %q or %q", c.Engine, EngineSim, EngineLibpd)
	}
	if c.Audio.InputChannels < 0 || c.Audio.OutputChannels < 0 {
		return invalid("audio", "channel counts must not be negative")
	}
	if c.Audio.SampleRate <= 0 {
		return invalid("audio.sample_rate", "must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Sim.MaxInstances < 0 {
		return invalid("sim.max_instances", "must not be negative")
	}
	if _, err := c.ZapLevel(); err != nil {
		return invalid("log.level", "%v", err)
	}
	return nil
}

// ZapLevel parses Log.Level.
func (c *Config) ZapLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.Log.Level)
}
