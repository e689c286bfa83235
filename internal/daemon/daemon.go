package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"segcheck/internal/audio"
	"segcheck/internal/config"
	"segcheck/internal/coordinator"
	"segcheck/internal/locks"
	"segcheck/internal/logging"
	"segcheck/internal/segment"
	"segcheck/internal/server"
)

// Daemon wires the coordinator to its transport and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	base   *slog.Logger
	store  *segment.Store
	hub    *server.Hub
	coord  *coordinator.Coordinator

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	server  *server.Server
	reaper  sync.WaitGroup
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Addr         string
	Connections  int
	Sessions     int
	Locks        int
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon around an open segment store.
func New(cfg *config.Config, store *segment.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	extractor, err := audio.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("audio extractor: %w", err)
	}

	hub := server.NewHub()
	coord := coordinator.New(cfg, store, extractor, logger, coordinator.WithNotifier(hub))

	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		base:     logger,
		store:    store,
		hub:      hub,
		coord:    coord,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Coordinator exposes the coordinator for in-process callers.
func (d *Daemon) Coordinator() *coordinator.Coordinator {
	return d.coord
}

// Start acquires the daemon lock, starts listening and launches the reaper.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another segcheck daemon instance is already running")
	}

	srv, err := server.New(d.cfg, d.coord, d.hub, d.base)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("create server: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := srv.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start server: %w", err)
	}
	d.server = srv
	d.cancel = cancel

	if idle := d.coord.LockIdleTimeout(); idle > 0 {
		interval := d.cfg.LockReapInterval()
		d.reaper.Add(1)
		go func() {
			defer d.reaper.Done()
			locks.RunReaper(runCtx, interval, func(now time.Time) {
				d.coord.ReapIdle(now)
			})
		}()
		d.logger.Info("idle lock reaper enabled",
			logging.Duration("idle_timeout", idle),
			logging.Duration("interval", interval),
		)
	}

	d.running.Store(true)
	d.logger.Info("segcheck daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", srv.Addr()),
	)
	return nil
}

// Stop closes every connection, stops the reaper and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.server != nil {
		d.server.Close()
	}
	d.reaper.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("segcheck daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the listening address while running.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil {
		return d.cfg.Server.Bind
	}
	return d.server.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	snap := d.coord.Status()
	return Status{
		Running:      d.running.Load(),
		Addr:         d.Addr(),
		Connections:  d.hub.Len(),
		Sessions:     len(snap.Sessions),
		Locks:        len(snap.Locks),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
