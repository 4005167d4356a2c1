//go:build linux

package engine

import "golang.org/x/sys/unix"

// osThreadID identifies the calling OS thread. Only meaningful while the
// goroutine is locked to its thread.
func osThreadID() int {
	return unix.Gettid()
}
