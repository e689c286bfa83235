// Package locks implements the in-memory segment lock table.
//
// A Table maps segment ids to the session holding them; at most one holder
// exists per segment. Locks are advisory and never persisted, so a restart
// starts from an empty table. An optional reaper releases locks whose holder
// has been silent longer than an idle timeout.
package locks
