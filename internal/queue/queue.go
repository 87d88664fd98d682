// Package queue provides the ordered track queue with a playback cursor,
// repeat policy and shuffle permutation. The queue is owned by the playback
// coordinator and is never mutated concurrently.
package queue

import (
	"math/rand"
	"time"
)

// RepeatMode defines the repeat behavior.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatTrack
	RepeatQueue
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "Off"
	case RepeatTrack:
		return "Track"
	case RepeatQueue:
		return "Queue"
	default:
		return "Unknown"
	}
}

// Track is a queued track reference with display metadata.
// Ref is the opaque catalog reference; metadata fields may be filled in
// lazily after resolution.
type Track struct {
	Ref         string
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Duration    time.Duration
}

// Queue is an ordered track list with a cursor.
//
// Invariant: the cursor is -1 if and only if the queue is empty; otherwise
// it always indexes a live element. Every mutation re-validates it.
type Queue struct {
	tracks  []Track
	cursor  int
	repeat  RepeatMode
	shuffle bool
	order   []int // play-order permutation, set only while shuffle is on
	rng     *rand.Rand
}

// New creates a new empty queue.
func New() *Queue {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded creates a queue whose shuffle permutation is derived from the
// given seed. Used by tests that need a deterministic play order.
func NewSeeded(seed int64) *Queue {
	return &Queue{
		cursor: -1,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Len returns the number of tracks.
func (q *Queue) Len() int { return len(q.tracks) }

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool { return len(q.tracks) == 0 }

// Cursor returns the current index, or -1 if the queue is empty.
func (q *Queue) Cursor() int { return q.cursor }

// Current returns the track under the cursor, or nil.
func (q *Queue) Current() *Track { return q.Track(q.cursor) }

// Track returns the track at index i, or nil if out of bounds.
func (q *Queue) Track(i int) *Track {
	if i < 0 || i >= len(q.tracks) {
		return nil
	}
	return &q.tracks[i]
}

// Tracks returns a copy of all tracks in sequence order.
func (q *Queue) Tracks() []Track {
	out := make([]Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// IndexOf returns the index of the first track with the given ref, or -1.
func (q *Queue) IndexOf(ref string) int {
	for i := range q.tracks {
		if q.tracks[i].Ref == ref {
			return i
		}
	}
	return -1
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode { return q.repeat }

// SetRepeat sets the repeat mode.
func (q *Queue) SetRepeat(m RepeatMode) { q.repeat = m }

// Shuffle returns whether shuffle is on.
func (q *Queue) Shuffle() bool { return q.shuffle }

// SetShuffle toggles shuffle. Turning it on draws a fresh permutation; the
// permutation then stays fixed until shuffle is toggled again or the queue
// contents change.
func (q *Queue) SetShuffle(on bool) {
	if q.shuffle == on {
		return
	}
	q.shuffle = on
	q.reshuffle()
}

// JumpTo moves the cursor to index i. Returns false if out of bounds.
func (q *Queue) JumpTo(i int) bool {
	if i < 0 || i >= len(q.tracks) {
		return false
	}
	q.cursor = i
	return true
}

// Append adds tracks at the end of the queue.
func (q *Queue) Append(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
	q.reshuffle()
}

// Insert adds tracks at index i (0 <= i <= Len). The cursor keeps pointing
// at the same track. Returns false if i is out of bounds.
func (q *Queue) Insert(i int, tracks ...Track) bool {
	if i < 0 || i > len(q.tracks) {
		return false
	}
	if len(tracks) == 0 {
		return true
	}
	q.tracks = append(q.tracks[:i], append(append([]Track{}, tracks...), q.tracks[i:]...)...)
	if q.cursor >= i {
		q.cursor += len(tracks)
	}
	q.reshuffle()
	return true
}

// RemoveAt removes the track at index i. It reports whether the removal
// happened and whether it invalidated the cursor's track. Removing the
// cursor's track advances the cursor according to the repeat mode.
func (q *Queue) RemoveAt(i int) (removed, invalidated bool) {
	if i < 0 || i >= len(q.tracks) {
		return false, false
	}
	invalidated = i == q.cursor
	q.tracks = append(q.tracks[:i], q.tracks[i+1:]...)
	switch {
	case len(q.tracks) == 0:
		q.cursor = -1
	case q.cursor > i:
		q.cursor--
	case invalidated && q.cursor >= len(q.tracks):
		if q.repeat == RepeatQueue {
			q.cursor = 0
		} else {
			q.cursor = len(q.tracks) - 1
		}
	}
	q.reshuffle()
	return true, invalidated
}

// Move moves the track at from to position to. The cursor follows its track.
func (q *Queue) Move(from, to int) bool {
	if from < 0 || from >= len(q.tracks) || to < 0 || to >= len(q.tracks) {
		return false
	}
	if from == to {
		return true
	}
	t := q.tracks[from]
	q.tracks = append(q.tracks[:from], q.tracks[from+1:]...)
	q.tracks = append(q.tracks[:to], append([]Track{t}, q.tracks[to:]...)...)
	switch {
	case q.cursor == from:
		q.cursor = to
	case from < q.cursor && to >= q.cursor:
		q.cursor--
	case from > q.cursor && to <= q.cursor:
		q.cursor++
	}
	q.reshuffle()
	return true
}

// Replace swaps the whole queue contents. The cursor moves to the first
// play-order index, or -1 if the new queue is empty.
func (q *Queue) Replace(tracks []Track) {
	q.tracks = append(q.tracks[:0:0], tracks...)
	q.reshuffle()
	if len(q.tracks) == 0 {
		q.cursor = -1
		return
	}
	q.cursor = q.First()
}

// First returns the first index in play order, or -1 if empty.
func (q *Queue) First() int {
	if len(q.tracks) == 0 {
		return -1
	}
	if q.shuffle {
		return q.order[0]
	}
	return 0
}

// Last returns the last index in play order, or -1 if empty.
func (q *Queue) Last() int {
	if len(q.tracks) == 0 {
		return -1
	}
	if q.shuffle {
		return q.order[len(q.order)-1]
	}
	return len(q.tracks) - 1
}

// NextOf returns the index following i in play order.
func (q *Queue) NextOf(i int) (int, bool) {
	if i < 0 || i >= len(q.tracks) {
		return -1, false
	}
	if !q.shuffle {
		if i+1 < len(q.tracks) {
			return i + 1, true
		}
		return -1, false
	}
	pos := q.orderPos(i)
	if pos >= 0 && pos+1 < len(q.order) {
		return q.order[pos+1], true
	}
	return -1, false
}

// PrevOf returns the index preceding i in play order.
func (q *Queue) PrevOf(i int) (int, bool) {
	if i < 0 || i >= len(q.tracks) {
		return -1, false
	}
	if !q.shuffle {
		if i > 0 {
			return i - 1, true
		}
		return -1, false
	}
	pos := q.orderPos(i)
	if pos > 0 {
		return q.order[pos-1], true
	}
	return -1, false
}

func (q *Queue) orderPos(i int) int {
	for pos, idx := range q.order {
		if idx == i {
			return pos
		}
	}
	return -1
}

func (q *Queue) reshuffle() {
	if !q.shuffle || len(q.tracks) == 0 {
		q.order = nil
		return
	}
	q.order = q.rng.Perm(len(q.tracks))
}
