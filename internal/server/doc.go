// Package server exposes the coordinator to annotation clients.
//
// Clients hold one WebSocket at /ws for the whole annotation session. Each
// connection gets a reader goroutine that handles frames in order and a
// writer goroutine that owns all writes, including the periodic keep_alive
// and ping frames. A connection silent for longer than server.idle_timeout is
// torn down, which releases its segment lock.
//
// Operator endpoints live under /api and are routed with gorilla/mux:
//
//	GET  /api/stats       aggregate counters
//	GET  /api/status      live sessions and locks
//	GET  /api/routes      the route table
//	POST /api/unlock_all  release every lock (bearer token when configured)
//	GET  /healthz         liveness
//
// When paths.static_dir is set, the annotation client is served from "/".
package server
