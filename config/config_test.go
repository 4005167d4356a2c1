package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/pd-runtime/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, EngineSim, cfg.Engine)
	assert.Equal(t, 2, cfg.Audio.OutputChannels)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load("testdata/pdrun.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"./abstractions"}, cfg.SearchPaths)
	assert.Equal(t, AudioConfig{InputChannels: 1, OutputChannels: 2, SampleRate: 48000, DSP: true}, cfg.Audio)
	assert.True(t, cfg.Hooks.RejectDuringDSP)
	assert.True(t, cfg.Sim.MIDIThrough)
	assert.Equal(t, ":9464", cfg.Metrics.Address)
	assert.Equal(t, "/metrics", cfg.Metrics.Path, "unset keys keep their defaults")

	lvl, err := cfg.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PD_AUDIO_SAMPLE_RATE", "96000")
	t.Setenv("PD_SEARCH_PATHS", "/a:/b")
	t.Setenv("PD_LOG_LEVEL", "warn")
	t.Setenv("PD_HOOKS_REJECT_DURING_DSP", "false")

	cfg, err := Load("testdata/pdrun.yaml")
	require.NoError(t, err)
	assert.Equal(t, 96000, cfg.Audio.SampleRate)
	assert.Equal(t, []string{"/a", "/b"}, cfg.SearchPaths)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Hooks.RejectDuringDSP)
	assert.Equal(t, 2, cfg.Audio.OutputChannels)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("audio: [1, 2"), 0o644))

	tests := []struct {
		name string
		path string
		env  map[string]string
		kind errors.Kind
	}{
		{"missing file", filepath.Join(dir, "none.yaml"), nil, errors.KindNotFound},
		{"bad yaml", bad, nil, errors.KindInvalidInput},
		{"bad env value", "", map[string]string{"PD_AUDIO_SAMPLE_RATE": "fast"}, errors.KindInvalidInput},
		{"unknown engine", "", map[string]string{"PD_ENGINE": "jack"}, errors.KindInvalidInput},
		{"zero rate", "", map[string]string{"PD_AUDIO_SAMPLE_RATE": "0"}, errors.KindInvalidInput},
		{"bad level", "", map[string]string{"PD_LOG_LEVEL": "loud"}, errors.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}
}
