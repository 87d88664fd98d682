package notify

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/ldelattre/coda/internal/playback"
)

// Watcher announces track changes as desktop notifications. Each new track
// replaces the previous notification instead of stacking.
type Watcher struct {
	notifier Notifier
	sub      *playback.Subscription
	done     chan struct{}
}

// Watch subscribes to the coordinator and starts announcing track changes.
func Watch(notifier Notifier, coord *playback.Coordinator) *Watcher {
	w := &Watcher{
		notifier: notifier,
		sub:      coord.Subscribe(),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Stop ends the watcher. The coordinator subscription stays registered and
// is drained until the coordinator shuts down.
func (w *Watcher) Stop() {
	close(w.done)
}

func (w *Watcher) run() {
	var lastRef string
	var lastID uint32
	for {
		select {
		case snap := <-w.sub.Snapshots:
			if snap.State != playback.StatePlaying || snap.Track == nil {
				continue
			}
			if snap.Track.Ref == lastRef {
				continue
			}
			lastRef = snap.Track.Ref

			id, err := w.notifier.Notify(trackNotification(snap, lastID))
			if err != nil {
				zlog.Debug().Err(err).Msg("track notification failed")
				continue
			}
			lastID = id
		case <-w.sub.Done:
			return
		case <-w.done:
			return
		}
	}
}

func trackNotification(snap playback.Snapshot, replaces uint32) Notification {
	body := snap.Track.Artist
	if snap.Track.Album != "" {
		if body != "" {
			body += " · "
		}
		body += snap.Track.Album
	}
	return Notification{
		Title:      snap.Track.Title,
		Body:       body,
		Icon:       FindAlbumArtPath(snap.Track.Ref),
		Timeout:    -1,
		ReplacesID: replaces,
		Urgency:    UrgencyLow,
	}
}
