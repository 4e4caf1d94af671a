// Package server wires the Fiber application: request-ID middleware, panic
// recovery, the conversion endpoints under /api and the diagnostics routes
// under /-/. Handlers only validate transport-level concerns and translate
// service errors into status codes; all orchestration lives in the speech
// package.
package server
