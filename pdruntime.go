package pdruntime

import "github.com/wippyai/pd-runtime/engine"

// BlockSize is the number of frames the engine computes per tick.
const BlockSize = engine.DefaultBlockSize

// CalculateTicks returns how many ticks fill an interleaved buffer of
// bufferLen samples across channels. A partial block does not count.
func CalculateTicks(channels, bufferLen int) int {
	if channels <= 0 || bufferLen <= 0 {
		return 0
	}
	return bufferLen / (BlockSize * channels)
}
