package pdruntime

import "testing"

func TestCalculateTicks(t *testing.T) {
	tests := []struct {
		name      string
		channels  int
		bufferLen int
		want      int
	}{
		{"stereo one block", 2, 128, 1},
		{"stereo many blocks", 2, 1024, 8},
		{"mono partial", 1, 100, 1},
		{"short buffer", 2, 127, 0},
		{"no channels", 0, 128, 0},
		{"negative length", 2, -128, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateTicks(tt.channels, tt.bufferLen); got != tt.want {
				t.Errorf("CalculateTicks(%d, %d) = %d, want %d", tt.channels, tt.bufferLen, got, tt.want)
			}
		})
	}
}
