// Package main hosts the segcheck CLI entrypoint and command graph.
//
// "segcheck serve" runs the coordinator daemon in the foreground. The
// remaining commands either operate on the segment database directly
// (import, export, stats --offline) or talk to a running server over HTTP and
// WebSocket (stats, status, unlock-all, next, doctor).
package main
