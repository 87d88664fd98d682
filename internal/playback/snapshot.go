package playback

import (
	"time"

	"github.com/ldelattre/coda/internal/queue"
	"github.com/ldelattre/coda/internal/volume"
)

// Snapshot is an immutable copy of the playback state, produced atomically
// on every transition. Observers never receive references into live state.
//
// Seq increases monotonically; consumers that see snapshots out of order
// discard the stale ones.
type Snapshot struct {
	Seq      uint64
	State    State
	Track    *queue.Track // current track, nil when the queue is empty
	Position time.Duration
	Duration time.Duration // zero until the pipeline prerolls
	Volume   volume.Volume
	Cursor   int // -1 when the queue is empty
	QueueLen int
	Repeat   queue.RepeatMode
	Shuffle  bool
	Reason   string // error reason, set on exactly one snapshot per failure
}
