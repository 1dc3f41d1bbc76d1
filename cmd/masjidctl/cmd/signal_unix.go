//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

// gracefulSignals returns the signals that trigger a graceful shutdown.
// On Unix: SIGINT (Ctrl+C) and SIGTERM (kill).
func gracefulSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}
