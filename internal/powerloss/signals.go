package powerloss

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/Brownout/pkg/logger"
)

// WatchSignals raises an edge for every SIGUSR1 until ctx is done, standing in
// for the fixture's GPIO interrupt line. The handler is installed before it
// returns; the returned channel closes once the watcher has stopped.
func WatchSignals(ctx context.Context, target Raiser) <-chan struct{} {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				logger.Log.Debug("Signal: SIGUSR1 received. Raising power loss.")
				target.Raise()
			}
		}
	}()
	return done
}

// Personal.AI order the ending
