// Package daemon hosts the long-running segcheck process.
//
// A Daemon owns the segment store handle, the audio extractor, the
// coordinator and the WebSocket server. Start takes an exclusive file lock so
// two daemons never share a database, then begins listening and, when
// locks.idle_timeout is set, runs the idle-lock reaper. Stop reverses those
// steps; every connected session is closed and its lock released.
package daemon
