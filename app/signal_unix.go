//go:build !windows

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
)

// interrupt blocks until a termination signal is received or cancel is
// closed. SIGUSR1 calls report without interrupting.
func interrupt(cancel <-chan struct{}, report func()) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(c)
	for {
		select {
		case sig := <-c:
			if sig == syscall.SIGUSR1 {
				report()
				continue
			}
			return errors.Wrapf(context.Canceled, "received signal %s", sig)
		case <-cancel:
			return errors.New("canceled")
		}
	}
}
