package pipeline

import "time"

// SessionID identifies one pipeline session. Every event carries the ID of
// the session that produced it so the coordinator can discard notifications
// from a superseded session.
type SessionID string

// EventKind enumerates the notifications a session surfaces.
type EventKind int

const (
	// EventPrerolled: asynchronous preparation finished; Duration is known.
	EventPrerolled EventKind = iota
	// EventPosition: periodic playback position report. Consecutive
	// position events may be coalesced by the consumer.
	EventPosition
	// EventBuffering: source buffering progress in percent.
	EventBuffering
	// EventEndOfStream: the track played to its end.
	EventEndOfStream
	// EventError: decode or render failure; the session is unusable.
	EventError
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventPrerolled:
		return "prerolled"
	case EventPosition:
		return "position"
	case EventBuffering:
		return "buffering"
	case EventEndOfStream:
		return "end-of-stream"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a pipeline notification translated into a typed value.
type Event struct {
	Session  SessionID
	Kind     EventKind
	Duration time.Duration // Prerolled
	Position time.Duration // Position
	Percent  int           // Buffering
	Err      error         // Error
}
