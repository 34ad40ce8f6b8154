package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// HandleTerminationProcess returns a context that is cancelled on SIGINT or SIGTERM.
// cleanup runs once, right after the signal arrives.
func HandleTerminationProcess(parent context.Context, cleanup func()) context.Context {
	ctx, cancel := context.WithCancel(parent)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			cleanup()
		case <-parent.Done():
		}
		signal.Stop(c)
		cancel()
	}()

	return ctx
}
