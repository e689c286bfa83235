package locks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrLockConflict is the sentinel wrapped by ConflictError.
	ErrLockConflict = errors.New("lock conflict")
	// ErrNotLocked reports a release of a segment nobody holds.
	ErrNotLocked = errors.New("segment is not locked")
)

// ConflictError reports an acquire or release by a session that is not the
// current holder.
type ConflictError struct {
	SegmentID string
	Holder    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("segment %s is locked by another session (%s)", e.SegmentID, e.Holder)
}

func (e *ConflictError) Unwrap() error {
	return ErrLockConflict
}

// Lock is one held segment.
type Lock struct {
	SegmentID  string
	Holder     string
	AcquiredAt time.Time
	TouchedAt  time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		if now != nil {
			t.now = now
		}
	}
}

// Table is safe for concurrent use.
type Table struct {
	mu    sync.Mutex
	locks map[string]*Lock
	now   func() time.Time
}

// New returns an empty table.
func New(opts ...Option) *Table {
	t := &Table{locks: make(map[string]*Lock), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Acquire locks segmentID for holder. Re-acquiring a lock already held by
// the same holder succeeds and refreshes it.
func (t *Table) Acquire(segmentID, holder string) error {
	if segmentID == "" || holder == "" {
		return errors.New("acquire: segment id and holder are required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if existing, ok := t.locks[segmentID]; ok {
		if existing.Holder != holder {
			return &ConflictError{SegmentID: segmentID, Holder: existing.Holder}
		}
		existing.TouchedAt = now
		return nil
	}
	t.locks[segmentID] = &Lock{SegmentID: segmentID, Holder: holder, AcquiredAt: now, TouchedAt: now}
	return nil
}

// Release frees segmentID if holder owns it.
func (t *Table) Release(segmentID, holder string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.locks[segmentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLocked, segmentID)
	}
	if existing.Holder != holder {
		return &ConflictError{SegmentID: segmentID, Holder: existing.Holder}
	}
	delete(t.locks, segmentID)
	return nil
}

// ReleaseAllFor frees every lock held by holder and returns the freed ids.
func (t *Table) ReleaseAllFor(holder string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var freed []string
	for id, lock := range t.locks {
		if lock.Holder == holder {
			delete(t.locks, id)
			freed = append(freed, id)
		}
	}
	sort.Strings(freed)
	return freed
}

// ReleaseAll empties the table and returns how many locks were freed.
func (t *Table) ReleaseAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.locks)
	t.locks = make(map[string]*Lock)
	return n
}

// Holder returns the session holding segmentID.
func (t *Table) Holder(segmentID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[segmentID]
	if !ok {
		return "", false
	}
	return lock.Holder, true
}

// HeldBy returns the segments holder owns.
func (t *Table) HeldBy(holder string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []string
	for id, lock := range t.locks {
		if lock.Holder == holder {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Touch refreshes every lock held by holder and returns how many were touched.
func (t *Table) Touch(holder string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for _, lock := range t.locks {
		if lock.Holder == holder {
			lock.TouchedAt = now
			n++
		}
	}
	return n
}

// Holders returns a segment id to holder map copy. Navigation evaluates
// candidates against it.
func (t *Table) Holders() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]string, len(t.locks))
	for id, lock := range t.locks {
		out[id] = lock.Holder
	}
	return out
}

// Snapshot returns a copy of all locks ordered by segment id.
func (t *Table) Snapshot() []Lock {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Lock, 0, len(t.locks))
	for _, lock := range t.locks {
		out = append(out, *lock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SegmentID < out[j].SegmentID })
	return out
}

// Len returns the number of held locks.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// CountByHolder returns the number of locks per holder.
func (t *Table) CountByHolder() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int)
	for _, lock := range t.locks {
		out[lock.Holder]++
	}
	return out
}
