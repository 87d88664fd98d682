package playback

import "github.com/cockroachdb/errors"

// Command rejection reasons. A rejected command causes no state change.
var (
	// ErrQueueEmpty rejects commands that need at least one queued track.
	ErrQueueEmpty = errors.New("queue is empty")
	// ErrNoActiveTrack rejects commands that reference a track the queue
	// does not have (no cursor, or an out-of-range index).
	ErrNoActiveTrack = errors.New("no active track")
	// ErrInvalidSeekTarget rejects seeks issued without an active session.
	ErrInvalidSeekTarget = errors.New("invalid seek target")
	// ErrClosed rejects commands issued after Close.
	ErrClosed = errors.New("coordinator closed")
)

// ErrTrackNotFound is returned by a Resolver when a track reference is
// stale, e.g. the underlying file was removed.
var ErrTrackNotFound = errors.New("track not found")
