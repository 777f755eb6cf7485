// Package trace records spans for kside sessions.
//
// A span follows one piece of work: the CLI session, a lane turn, a
// correlated worker request, or per-file checking inside the worker. Spans
// nest through the context, so a request span names the lane turn that
// issued it.
//
// Events go to a Recorder, which can stream them to a file, keep the most
// recent ones in memory for a dump when a command fails, or both:
//
//	kside compile --trace=- --trace-level=detail
//	kside check --trace-mode=ring --trace-level=error
//
// At LevelError nothing is streamed; a ring still holds session, lane and
// request spans so a failed handshake or a lost response can be inspected
// after the fact. A Pulse adds periodic heartbeats carrying the number of
// outstanding requests, which tells a slow worker from a hung one.
package trace
