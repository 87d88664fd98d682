package planner

import (
	"testing"

	"github.com/ldelattre/coda/internal/queue"
)

func newQueue(n int, repeat queue.RepeatMode, cursor int) *queue.Queue {
	q := queue.NewSeeded(1)
	tracks := make([]queue.Track, n)
	for i := range tracks {
		tracks[i] = queue.Track{Ref: string(rune('a' + i))}
	}
	q.Replace(tracks)
	q.SetRepeat(repeat)
	q.JumpTo(cursor)
	return q
}

func TestNext_EndOfStream(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		repeat queue.RepeatMode
		cursor int
		want   int
	}{
		{"advance mid queue", 3, queue.RepeatOff, 0, 1},
		{"repeat off exhausted at last", 3, queue.RepeatOff, 2, -1},
		{"repeat queue wraps at last", 2, queue.RepeatQueue, 1, 0},
		{"repeat track replays", 3, queue.RepeatTrack, 1, 1},
		{"repeat track replays at last", 3, queue.RepeatTrack, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(tt.n, tt.repeat, tt.cursor)
			if got := Next(q, TriggerEndOfStream); got != tt.want {
				t.Errorf("Next() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNext_NextCommand(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		repeat queue.RepeatMode
		cursor int
		want   int
	}{
		{"advance", 3, queue.RepeatOff, 0, 1},
		{"no wrap at last with repeat off", 3, queue.RepeatOff, 2, -1},
		{"wrap at last with repeat queue", 3, queue.RepeatQueue, 2, 0},
		{"repeat track still advances", 3, queue.RepeatTrack, 0, 1},
		{"repeat track advances past last without wrap", 3, queue.RepeatTrack, 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(tt.n, tt.repeat, tt.cursor)
			if got := Next(q, TriggerNext); got != tt.want {
				t.Errorf("Next() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNext_PreviousCommand(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		repeat queue.RepeatMode
		cursor int
		want   int
	}{
		{"step back", 3, queue.RepeatOff, 2, 1},
		{"replay first without wrap", 3, queue.RepeatOff, 0, 0},
		{"wrap to last with repeat queue", 3, queue.RepeatQueue, 0, 2},
		{"repeat track still moves back", 3, queue.RepeatTrack, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(tt.n, tt.repeat, tt.cursor)
			if got := Next(q, TriggerPrevious); got != tt.want {
				t.Errorf("Next() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNext_EmptyQueue(t *testing.T) {
	q := queue.New()
	for _, trigger := range []Trigger{TriggerEndOfStream, TriggerNext, TriggerPrevious} {
		if got := Next(q, trigger); got != -1 {
			t.Errorf("Next(empty, %v) = %d, want -1", trigger, got)
		}
	}
}

func TestNext_ShuffleFollowsPermutation(t *testing.T) {
	q := queue.NewSeeded(42)
	tracks := make([]queue.Track, 6)
	for i := range tracks {
		tracks[i] = queue.Track{Ref: string(rune('a' + i))}
	}
	q.Replace(tracks)
	q.SetShuffle(true)
	q.JumpTo(q.First())

	// Walking via the planner must visit every index exactly once.
	seen := map[int]bool{q.Cursor(): true}
	for {
		next := Next(q, TriggerEndOfStream)
		if next == -1 {
			break
		}
		if seen[next] {
			t.Fatalf("index %d planned twice", next)
		}
		seen[next] = true
		q.JumpTo(next)
	}
	if len(seen) != q.Len() {
		t.Errorf("shuffle walk visited %d of %d indices", len(seen), q.Len())
	}

	// RepeatQueue wraps to the permutation's first index, not index 0.
	q.SetRepeat(queue.RepeatQueue)
	q.JumpTo(q.Last())
	if got := Next(q, TriggerEndOfStream); got != q.First() {
		t.Errorf("wrap under shuffle = %d, want First() = %d", got, q.First())
	}
}
