// Package server exposes conversations over HTTP.
//
// Routes:
//
//	POST /api/chat              ask a question
//	GET  /api/history/:session  list a session's turns
//	GET  /health                liveness
//
// Everything else is served from the static directory, if configured.
package server
