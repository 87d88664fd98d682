package playback

import "sync"

const snapshotBuffer = 16

// Subscription delivers snapshots to one observer. Delivery is lossy: if
// the observer falls behind, older snapshots are dropped. The sequence
// number lets the observer detect gaps; the newest snapshot is always
// available from Coordinator.Snapshot.
type Subscription struct {
	Snapshots <-chan Snapshot
	Done      <-chan struct{}

	ch   chan Snapshot
	done chan struct{}
	once sync.Once
}

func newSubscription() *Subscription {
	s := &Subscription{
		ch:   make(chan Snapshot, snapshotBuffer),
		done: make(chan struct{}),
	}
	s.Snapshots = s.ch
	s.Done = s.done
	return s
}

// send delivers a snapshot without blocking, dropping it if the buffer is
// full.
func (s *Subscription) send(snap Snapshot) {
	select {
	case s.ch <- snap:
	default:
	}
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}
