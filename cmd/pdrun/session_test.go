package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wippyai/pd-runtime/config"
	"github.com/wippyai/pd-runtime/errors"
)

const echoPatch = "../../pd/testdata/echo.pd"

func testSession(t *testing.T, listen ...string) *session {
	t.Helper()
	cfg := config.Default()
	s, err := openSession(cfg, zap.NewNop(), nil, echoPatch, listen)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func collect(s *session) []string {
	var out []string
	for {
		select {
		case e := <-s.events:
			out = append(out, e.category+" "+e.source+" "+e.text)
		default:
			return out
		}
	}
}

func TestSessionSend(t *testing.T) {
	s := testSession(t, "list_from_pd", "float_from_pd")

	tests := []struct {
		receiver string
		text     string
		want     string
	}{
		{"float_from_go", "440", "float float_from_pd 440"},
		{"list_from_go", "1 2 three", "list list_from_pd 1 2 three"},
		{"list_from_go", "list a b", "list list_from_pd a b"},
		{"list_from_go", "", "bang list_from_pd bang"},
		{"list_from_go", "bang", "bang list_from_pd bang"},
		{"list_from_go", "symbol hi", "symbol list_from_pd hi"},
		{"list_from_go", "set 1 2", "message list_from_pd set 1 2"},
	}

	for _, tt := range tests {
		t.Run(tt.receiver+" "+tt.text, func(t *testing.T) {
			require.NoError(t, s.send(tt.receiver, tt.text))
			require.NoError(t, s.step())
			assert.Equal(t, []string{tt.want}, collect(s))
		})
	}
}

func TestSessionSendLine(t *testing.T) {
	s := testSession(t)

	require.NoError(t, s.sendLine("1001-print 7"))
	require.NoError(t, s.step())
	assert.Equal(t, []string{"print  echo: 7"}, collect(s))

	require.Error(t, s.sendLine("   "))
	err := s.sendLine("nobody 1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSessionLoop(t *testing.T) {
	s := testSession(t, "float_from_pd")
	require.NoError(t, s.send("float_from_go", "1"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, runLines(ctx, s, &out))
	assert.Contains(t, out.String(), "float_from_pd: 1")
}

func TestSessionDo(t *testing.T) {
	s := testSession(t, "float_from_pd")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.loop(ctx) }()

	require.NoError(t, s.do(ctx, func() error { return s.send("float_from_go", "2") }))
	select {
	case e := <-s.events:
		assert.Equal(t, "2", e.text)
	case <-time.After(2 * time.Second):
		t.Fatal("no event from the audio loop")
	}
	cancel()
	require.NoError(t, <-done)
	assert.ErrorIs(t, s.do(ctx, func() error { return nil }), context.Canceled)
}

func TestSessionBuffers(t *testing.T) {
	cfg := config.Default()
	s := &session{}
	s.sizeBuffers(cfg)
	assert.Equal(t, 6, s.ticks)
	assert.Len(t, s.out, 6*64*2)
	assert.Empty(t, s.in)
	assert.Greater(t, s.period, time.Duration(0))

	cfg.Audio.OutputChannels = 0
	s.sizeBuffers(cfg)
	assert.Equal(t, 6, s.ticks)
}

func TestOpenSessionErrors(t *testing.T) {
	cfg := config.Default()
	_, err := openSession(cfg, zap.NewNop(), nil, "missing.pd", nil)
	require.Error(t, err)
	assert.Equal(t, errors.KindPatch, errors.KindOf(err))

	cfg.Engine = config.EngineLibpd
	_, err = openSession(cfg, zap.NewNop(), nil, echoPatch, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "libpd"))
}

func TestEventString(t *testing.T) {
	e := event{at: time.Date(2024, 1, 2, 3, 4, 5, 6e6, time.UTC), category: "float", source: "out", text: "1"}
	assert.Equal(t, "03:04:05.006 float         out: 1", e.String())
}
