// Package planner decides which queue index plays next. It is a pure
// function of the queue's current state and the trigger, so the policy is
// testable without a live pipeline.
package planner

import "github.com/ldelattre/coda/internal/queue"

// Trigger identifies what asked for a transition.
type Trigger int

const (
	// TriggerEndOfStream is the pipeline reporting the current track ended.
	TriggerEndOfStream Trigger = iota
	// TriggerNext is an explicit skip-forward command.
	TriggerNext
	// TriggerPrevious is an explicit skip-backward command.
	TriggerPrevious
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerEndOfStream:
		return "end-of-stream"
	case TriggerNext:
		return "next"
	case TriggerPrevious:
		return "previous"
	default:
		return "unknown"
	}
}

// Next returns the queue index to play after the given trigger, or -1 when
// the queue is exhausted. Rules:
//
//   - End of stream with RepeatTrack replays the same index.
//   - End of stream at the last play-order index wraps to the first under
//     RepeatQueue and returns -1 under RepeatOff.
//   - Next and Previous ignore RepeatTrack (they always move) but wrap
//     under RepeatQueue.
//   - Previous at the first play-order index without wrap replays the
//     current index.
//
// With shuffle on, "next" and "previous" follow the queue's fixed
// permutation rather than sequence order.
func Next(q *queue.Queue, trigger Trigger) int {
	cur := q.Cursor()
	if q.IsEmpty() || cur < 0 {
		return -1
	}

	switch trigger {
	case TriggerEndOfStream:
		if q.Repeat() == queue.RepeatTrack {
			return cur
		}
		if next, ok := q.NextOf(cur); ok {
			return next
		}
		if q.Repeat() == queue.RepeatQueue {
			return q.First()
		}
		return -1

	case TriggerNext:
		if next, ok := q.NextOf(cur); ok {
			return next
		}
		if q.Repeat() == queue.RepeatQueue {
			return q.First()
		}
		return -1

	case TriggerPrevious:
		if prev, ok := q.PrevOf(cur); ok {
			return prev
		}
		if q.Repeat() == queue.RepeatQueue {
			return q.Last()
		}
		return cur

	default:
		return -1
	}
}
