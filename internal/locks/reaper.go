package locks

import (
	"context"
	"sort"
	"time"
)

// Reap releases locks untouched for longer than idle and returns them.
// A non-positive idle disables reaping.
func (t *Table) Reap(now time.Time, idle time.Duration) []Lock {
	if idle <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var reaped []Lock
	for id, lock := range t.locks {
		if now.Sub(lock.TouchedAt) > idle {
			reaped = append(reaped, *lock)
			delete(t.locks, id)
		}
	}
	sort.Slice(reaped, func(i, j int) bool { return reaped[i].SegmentID < reaped[j].SegmentID })
	return reaped
}

// RunReaper calls reap every interval until ctx is cancelled. It returns
// immediately when interval is not positive.
func RunReaper(ctx context.Context, interval time.Duration, reap func(now time.Time)) {
	if interval <= 0 || reap == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reap(now)
		}
	}
}
