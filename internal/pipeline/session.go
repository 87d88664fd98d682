// Package pipeline wraps the external decode/render pipeline. A Session is
// the ownership handle for exactly one pipeline instance bound to one track;
// it translates the pipeline's asynchronous notifications into typed events.
package pipeline

import "time"

// eventBuffer sizes each session's event channel. Position events are
// droppable, so the buffer only has to absorb short consumer stalls.
const eventBuffer = 32

// Session is one lifetime instance of a pipeline bound to a single track.
//
// Creation does not block: preparation runs asynchronously and ends with an
// EventPrerolled (or EventError) on the Events channel. Play, Pause, Seek
// and SetGain are fire-and-acknowledge; their outcome is observable through
// later events. Position is a best-effort synchronous query and may be
// stale by the pipeline's internal latency.
type Session interface {
	ID() SessionID
	// Events delivers this session's notifications. The channel is never
	// closed; after Destroy returns no further events are delivered.
	Events() <-chan Event
	Play()
	Pause()
	// Seek requests an absolute position. Acknowledged by an EventPosition.
	Seek(pos time.Duration)
	// SetGain sets the linear output gain in [0, 1].
	SetGain(linear float64)
	Position() time.Duration
	// Destroy requests graceful teardown bounded by timeout and reports
	// whether it completed in time. Either way, no events are delivered
	// for this session once Destroy has returned.
	Destroy(timeout time.Duration) bool
}

// Factory allocates pipeline sessions.
type Factory interface {
	// New allocates a session for the given source URI without blocking.
	New(uri string) Session
}
