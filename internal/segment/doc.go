// Package segment persists the annotation catalogue in SQLite.
//
// The Store owns every Segment record: its audio source, time chunk, current
// status, append-only status history, labels, and comment. Saves go through
// SaveAnnotation, which rebuilds the history from the stored record so the
// "history never holds unchecked" rule cannot be bypassed by clients. The
// catalogue order (the 1-based display index) is fixed at import time.
//
// Filters name the status selections navigation understands; Stats scans the
// table for the aggregate counters shown to annotators.
package segment
