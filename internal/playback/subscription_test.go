package playback

import (
	"testing"
	"testing/synctest"
)

func TestSubscriptionDropsWhenFull(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sub := newSubscription()

		// Nobody reads: sends beyond the buffer must not block.
		for i := range snapshotBuffer + 10 {
			sub.send(Snapshot{Seq: uint64(i + 1)})
		}

		var got []uint64
		for {
			select {
			case snap := <-sub.Snapshots:
				got = append(got, snap.Seq)
				continue
			default:
			}
			break
		}
		if len(got) != snapshotBuffer {
			t.Fatalf("buffered snapshots = %d, want %d", len(got), snapshotBuffer)
		}
		// The oldest snapshots survive; the overflow was dropped.
		if got[0] != 1 || got[len(got)-1] != snapshotBuffer {
			t.Fatalf("buffered range = [%d, %d], want [1, %d]", got[0], got[len(got)-1], snapshotBuffer)
		}
	})
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	synctest.Test(t, func(_ *testing.T) {
		sub := newSubscription()
		sub.close()
		sub.close()
		<-sub.Done
	})
}

func TestSubscribeDeliversCurrentSnapshot(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, _ := newTestCoordinator(t, Config{}, "a.flac")

		sub := c.Subscribe()
		snap := <-sub.Snapshots
		if snap.QueueLen != 1 {
			t.Fatalf("initial snapshot queueLen = %d, want 1", snap.QueueLen)
		}
	})
}

func TestSubscriptionsCloseOnShutdown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c, _ := newTestCoordinator(t, Config{})
		sub := c.Subscribe()

		if err := c.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		select {
		case <-sub.Done:
		default:
			t.Fatal("subscription not closed on shutdown")
		}

		// Late subscribers get an already-closed subscription.
		late := c.Subscribe()
		select {
		case <-late.Done:
		default:
			t.Fatal("post-shutdown subscription not closed")
		}
	})
}
