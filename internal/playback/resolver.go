package playback

import "time"

// Resolved is the catalog's answer for a track reference.
type Resolved struct {
	URI          string
	DurationHint time.Duration
	Title        string
	Artist       string
	Album        string
	TrackNumber  int
}

// Resolver turns an opaque track reference into a playable source. The
// coordinator consumes it; it never owns the catalog. Implementations
// return ErrTrackNotFound for stale references.
type Resolver interface {
	Resolve(ref string) (*Resolved, error)
}
