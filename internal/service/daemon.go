// Package service runs the gateway process and makes sure one is running.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tull/internal/config"
	"github.com/ternarybob/tull/internal/store"
)

// Daemon manages the gateway lifecycle.
type Daemon struct {
	cfg      *config.Config
	logger   arbor.ILogger
	server   *http.Server
	listener net.Listener
	watcher  *store.Watcher

	errCh     chan error
	stopCh    chan struct{}
	stoppedCh chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewDaemon creates a new daemon instance.
func NewDaemon(cfg *config.Config, logger arbor.ILogger) *Daemon {
	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		errCh:     make(chan error, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start binds the configured address and serves handler in the background.
// A bind failure is returned directly so a second gateway on the same
// address exits instead of running alongside the first.
func (d *Daemon) Start(handler http.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon already running")
	}

	ln, err := net.Listen("tcp", d.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.cfg.Address(), err)
	}
	d.listener = ln

	d.server = &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	d.running = true

	go func() {
		d.logger.Info().Str("addr", ln.Addr().String()).Msg("Gateway listening")
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error().Err(err).Msg("Gateway stopped serving")
			d.errCh <- err
		}
	}()

	return nil
}

// Addr returns the bound address, useful when the configured port is 0.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// WatchSessions logs sessions appearing and disappearing in st.
// Watching is best-effort: a failure is logged and serving continues.
func (d *Daemon) WatchSessions(st *store.Store) {
	w, err := st.NewWatcher()
	if err != nil {
		d.logger.Warn().Err(err).Msg("Session watcher unavailable")
		return
	}
	if err := w.Start(); err != nil {
		d.logger.Warn().Err(err).Str("dir", st.DataDir()).Msg("Session watcher unavailable")
		_ = w.Stop()
		return
	}

	d.mu.Lock()
	d.watcher = w
	d.mu.Unlock()

	go func() {
		for {
			select {
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				d.logger.Info().Str("session", ev.ID).Str("event", string(ev.Kind)).Msg("Session changed")
			case err := <-w.Errors():
				d.logger.Warn().Err(err).Msg("Session watcher error")
			}
		}
	}()
}

// Wait blocks until a signal arrives, ctx is done, Stop is called or the
// server fails, then shuts down. It returns the server failure, if any.
func (d *Daemon) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	case <-ctx.Done():
		d.logger.Info().Msg("Context done, shutting down")
	case <-d.stopCh:
		d.logger.Info().Msg("Stop requested, shutting down")
	case serveErr = <-d.errCh:
	}

	d.shutdown()
	return serveErr
}

// Stop signals Wait to return and waits for the shutdown to finish.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
	d.mu.Unlock()

	<-d.stoppedCh
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Gateway shutdown error")
	}

	if d.watcher != nil {
		_ = d.watcher.Stop()
	}

	d.running = false
	close(d.stoppedCh)
}
