package coordinator

import (
	"context"

	"segcheck/internal/protocol"
)

// Live stat keys added on top of the store counters.
const (
	StatLocked         = "locked"
	StatLockedByPrefix = "locked by:"
	StatSessions       = "sessions"
)

// Stats merges stored annotation counters with live lock and session counts.
func (c *Coordinator) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, newError(KindStore, "stats", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stats[StatLocked] = c.locks.Len()
	stats[StatSessions] = c.sessions.Len()
	for holder, n := range c.locks.CountByHolder() {
		name := holder
		if sess, ok := c.sessions.Get(holder); ok && sess.User != "" {
			name = sess.User
		}
		stats[StatLockedByPrefix+name] += n
	}
	return stats, nil
}

func (c *Coordinator) statsResponse(ctx context.Context) (protocol.Response, error) {
	stats, err := c.Stats(ctx)
	if err != nil {
		return protocol.Response{}, err
	}
	resp, err := protocol.NewResponse(protocol.TypeStats, stats)
	if err != nil {
		return protocol.Response{}, newError(KindProtocol, "stats", err)
	}
	return resp, nil
}
