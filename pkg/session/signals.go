package session

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

// WatchSignals returns a context that is cancelled with a *SignalError
// cause on SIGINT or SIGTERM. After the first signal the default handling
// is restored, so a second Ctrl+C terminates the process immediately.
// stop releases the handler and cancels the context.
func WatchSignals(parent context.Context, logger zerolog.Logger) (ctx context.Context, stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return watch(parent, ch, func() { signal.Stop(ch) }, logger)
}

func watch(parent context.Context, ch <-chan os.Signal, release func(), logger zerolog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			release()
			logger.Warn().Str("signal", sig.String()).Msg("interrupt received, stopping export")
			cancel(&SignalError{Signal: sig})
		case <-done:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			release()
			cancel(context.Canceled)
		})
	}
	return ctx, stop
}
