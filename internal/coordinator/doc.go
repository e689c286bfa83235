// Package coordinator serializes segment assignment for all connected
// annotators.
//
// A single mutex guards the lock table, the session registry and the
// resolve+acquire scan, so two sessions can never be handed the same segment.
// Saves are written to the store inside the critical section; audio
// extraction runs after the lock is taken and outside it.
//
// Every request produces exactly one response. Failures are returned as
// *Error values whose Kind is surfaced to the client in error_kind.
package coordinator
