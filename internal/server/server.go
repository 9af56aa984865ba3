// Package server runs the bridge's HTTP listener and coordinates orderly
// shutdown of the resources behind it.
package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func() error
}

// Hooks is an ordered list of teardown steps run after the listener stops.
// Execution continues even when a hook fails; failures are logged, not
// returned, since there is nothing left to do with them at shutdown.
type Hooks struct {
	hooks []hook
}

// Add registers a named teardown step.
func (h *Hooks) Add(name string, fn func() error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// AddCloser registers the Close method of a resource as a teardown step.
func (h *Hooks) AddCloser(name string, closer interface{ Close() error }) {
	h.Add(name, closer.Close)
}

func (h *Hooks) run() {
	for _, hk := range h.hooks {
		if err := hk.fn(); err != nil {
			log.Warn().Err(err).Str("hook", hk.name).Msg("shutdown hook failed")
		} else {
			log.Debug().Str("hook", hk.name).Msg("shutdown hook complete")
		}
	}
}

// Serve runs srv until ctx is cancelled or an interrupt/terminate signal
// arrives, then drains in-flight requests for at most shutdownTimeout before
// running the teardown hooks.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, hooks *Hooks) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Str("addr", srv.Addr).Msg("listening")

	var serveErr error
	select {
	case err := <-errCh:
		// the listener failed outright; no graceful drain possible
		serveErr = err
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown incomplete")
		}
	}

	if hooks != nil {
		hooks.run()
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}

	return nil
}
