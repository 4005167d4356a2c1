//go:build !linux

package engine

// osThreadID returns a single shared id where no thread id is available, so
// every thread shares one selector in the simulated engine.
func osThreadID() int {
	return 0
}
