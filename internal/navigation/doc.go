// Package navigation computes which segment a session should see next.
//
// The resolver is a pure function over a catalogue snapshot and a lock
// holder snapshot. It yields candidates lazily in walk order; callers stop
// at the first one they manage to lock. The walk never wraps around the
// catalogue boundaries.
package navigation
