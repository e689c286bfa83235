package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"segcheck/internal/audio"
	"segcheck/internal/config"
	"segcheck/internal/locks"
	"segcheck/internal/logging"
	"segcheck/internal/protocol"
	"segcheck/internal/segment"
	"segcheck/internal/session"
)

// Store is the persistence contract the coordinator relies on.
type Store interface {
	Catalogue(ctx context.Context) ([]segment.Entry, error)
	Get(ctx context.Context, id string) (*segment.Segment, error)
	SaveAnnotation(ctx context.Context, anno protocol.Annotation) (*segment.Segment, error)
	Stats(ctx context.Context) (map[string]int, error)
}

// Notifier delivers unsolicited messages to connected sessions.
type Notifier interface {
	Broadcast(resp protocol.Response, except string)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets the broadcast target for unlock-all notices.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithClock overrides the time source for locks and sessions.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator owns the lock table and session registry.
type Coordinator struct {
	mu        sync.Mutex
	store     Store
	extractor audio.Extractor
	locks     *locks.Table
	sessions  *session.Registry
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time

	acquireRetries int
	defaultContext int64
	lockIdle       time.Duration
}

// New constructs a coordinator over store and extractor.
func New(cfg *config.Config, store Store, extractor audio.Extractor, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		extractor:      extractor,
		logger:         logging.NewComponentLogger(logger, "coordinator"),
		now:            time.Now,
		acquireRetries: 1,
	}
	if cfg != nil {
		c.acquireRetries = max(cfg.Coordinator.AcquireRetries, 1)
		c.defaultContext = cfg.Audio.DefaultContextMS
		c.lockIdle = cfg.LockIdleTimeout()
	}
	for _, opt := range opts {
		opt(c)
	}
	c.locks = locks.New(locks.WithClock(c.now))
	c.sessions = session.NewRegistry(c.now)
	return c
}

// Connect registers a session. An empty id is replaced with a generated one.
func (c *Coordinator) Connect(ctx context.Context, sessionID string) (session.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.sessions.Register(sessionID)
	if err != nil {
		return session.Session{}, classify("connect", err)
	}
	logging.WithContext(ctx, c.logger).Info("session connected",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.Int("sessions", c.sessions.Len()),
	)
	return sess, nil
}

// Disconnect unregisters the session and releases every lock it holds.
func (c *Coordinator) Disconnect(ctx context.Context, sessionID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.sessions.Unregister(sessionID)
	released := c.locks.ReleaseAllFor(sessionID)
	if err != nil {
		return released, classify("disconnect", err)
	}
	logging.WithContext(ctx, c.logger).Info("session disconnected",
		logging.String(logging.FieldSessionID, sess.ID),
		logging.String(logging.FieldUser, sess.User),
		logging.Any("released", released),
	)
	return released, nil
}

// Touch records activity for the session and refreshes its lock.
func (c *Coordinator) Touch(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions.Touch(sessionID)
	c.locks.Touch(sessionID)
}

// ReapIdle releases locks untouched for longer than locks.idle_timeout.
func (c *Coordinator) ReapIdle(now time.Time) []locks.Lock {
	c.mu.Lock()
	defer c.mu.Unlock()

	reaped := c.locks.Reap(now, c.lockIdle)
	for _, lock := range reaped {
		c.sessions.ClearHeldIf(lock.Holder, lock.SegmentID)
		logging.WarnWithContext(c.logger, "idle lock released", "lock_reaped",
			logging.String(logging.FieldSegmentID, lock.SegmentID),
			logging.String(logging.FieldSessionID, lock.Holder),
			logging.Duration("idle", now.Sub(lock.TouchedAt)),
			logging.String(logging.FieldErrorHint, "raise locks.idle_timeout if annotators need longer per segment"),
			logging.String(logging.FieldImpact, "segment returned to the pool"),
		)
	}
	return reaped
}

// LockIdleTimeout reports the configured reaper timeout.
func (c *Coordinator) LockIdleTimeout() time.Duration {
	return c.lockIdle
}

// SessionView is a session as reported on the status endpoint.
type SessionView struct {
	ID          string    `json:"id"`
	User        string    `json:"user,omitempty"`
	Held        string    `json:"held,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// LockView is a lock as reported on the status endpoint.
type LockView struct {
	SegmentID  string    `json:"segment_id"`
	Holder     string    `json:"holder"`
	User       string    `json:"user,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
	TouchedAt  time.Time `json:"touched_at"`
}

// Snapshot is a consistent view of sessions and locks.
type Snapshot struct {
	Sessions []SessionView `json:"sessions"`
	Locks    []LockView    `json:"locks"`
}

// Status returns the live sessions and locks.
func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions := c.sessions.List()
	users := make(map[string]string, len(sessions))
	snap := Snapshot{
		Sessions: make([]SessionView, 0, len(sessions)),
		Locks:    []LockView{},
	}
	for _, s := range sessions {
		users[s.ID] = s.User
		snap.Sessions = append(snap.Sessions, SessionView(s))
	}
	for _, lock := range c.locks.Snapshot() {
		snap.Locks = append(snap.Locks, LockView{
			SegmentID:  lock.SegmentID,
			Holder:     lock.Holder,
			User:       users[lock.Holder],
			AcquiredAt: lock.AcquiredAt,
			TouchedAt:  lock.TouchedAt,
		})
	}
	return snap
}

// session returns the live session or a session error.
func (c *Coordinator) session(op, sessionID string) (session.Session, error) {
	sess, ok := c.sessions.Get(sessionID)
	if !ok {
		return session.Session{}, newError(KindSession, op, fmt.Errorf("%w: %s", session.ErrUnknownSession, sessionID))
	}
	return sess, nil
}
