//go:build linux

// Package mpris publishes the player over D-Bus as an MPRIS media player
// and feeds desktop commands back into the coordinator.
package mpris

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/events"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	zlog "github.com/rs/zerolog/log"

	"github.com/ldelattre/coda/internal/playback"
	"github.com/ldelattre/coda/internal/queue"
)

// Adapter bridges the coordinator to MPRIS. It reads snapshots only and
// issues commands through the coordinator's public surface.
type Adapter struct {
	coord  *playback.Coordinator
	server *server.Server
	events *events.EventHandler
	sub    *playback.Subscription
	done   chan struct{}
}

// New creates and starts an MPRIS adapter for the coordinator.
func New(coord *playback.Coordinator) (*Adapter, error) {
	a := &Adapter{
		coord: coord,
		done:  make(chan struct{}),
	}
	a.server = server.NewServer("coda", &rootAdapter{}, &playerAdapter{coord: coord})
	a.events = events.NewEventHandler(a.server)
	a.sub = coord.Subscribe()

	go func() {
		if err := a.server.Listen(); err != nil {
			zlog.Warn().Err(err).Msg("mpris server stopped")
		}
	}()
	go a.watch()

	return a, nil
}

// Close stops the adapter and releases the bus name.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// watch mirrors snapshot transitions into MPRIS property-change signals.
func (a *Adapter) watch() {
	var prev playback.Snapshot
	for {
		select {
		case snap := <-a.sub.Snapshots:
			if snap.Seq <= prev.Seq {
				continue
			}
			a.signalChanges(prev, snap)
			prev = snap
		case <-a.sub.Done:
			return
		case <-a.done:
			return
		}
	}
}

func (a *Adapter) signalChanges(prev, cur playback.Snapshot) {
	if trackRef(prev.Track) != trackRef(cur.Track) || prev.Duration != cur.Duration {
		_ = a.events.Player.OnTitle()
	}
	if prev.State != cur.State {
		_ = a.events.Player.OnPlayPause()
	}
	if prev.Volume.Cubic() != cur.Volume.Cubic() {
		_ = a.events.Player.OnVolume()
	}
	if prev.Repeat != cur.Repeat || prev.Shuffle != cur.Shuffle {
		_ = a.events.Player.OnOptions()
	}
}

func trackRef(t *queue.Track) string {
	if t == nil {
		return ""
	}
	return t.Ref
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error { return nil }
func (r *rootAdapter) Quit() error  { return nil }

func (r *rootAdapter) CanQuit() (bool, error)      { return false, nil }
func (r *rootAdapter) CanRaise() (bool, error)     { return false, nil }
func (r *rootAdapter) HasTrackList() (bool, error) { return false, nil }
func (r *rootAdapter) Identity() (string, error)   { return "coda", nil }

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter plus the
// LoopStatus and Shuffle extensions.
type playerAdapter struct {
	coord *playback.Coordinator
}

func (p *playerAdapter) Next() error     { return p.coord.Next() }
func (p *playerAdapter) Previous() error { return p.coord.Previous() }
func (p *playerAdapter) Pause() error    { return p.coord.Pause() }

func (p *playerAdapter) PlayPause() error { return p.coord.TogglePause() }
func (p *playerAdapter) Stop() error      { return p.coord.Stop() }
func (p *playerAdapter) Play() error      { return p.coord.Play() }

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	snap := p.coord.Snapshot()
	return p.coord.SeekTo(snap.Position + time.Duration(offset)*time.Microsecond)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.coord.SeekTo(time.Duration(position) * time.Microsecond)
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error { return nil }

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.coord.Snapshot().State {
	case playback.StatePlaying, playback.StateLoading:
		return types.PlaybackStatusPlaying, nil
	case playback.StatePaused:
		return types.PlaybackStatusPaused, nil
	default:
		return types.PlaybackStatusStopped, nil
	}
}

func (p *playerAdapter) Rate() (float64, error)  { return 1.0, nil }
func (p *playerAdapter) SetRate(_ float64) error { return nil }

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	snap := p.coord.Snapshot()
	if snap.Track == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId:     dbus.ObjectPath(formatTrackID(snap.Track.Ref)),
		Length:      types.Microseconds(snap.Duration.Microseconds()),
		Title:       snap.Track.Title,
		Artist:      []string{snap.Track.Artist},
		Album:       snap.Track.Album,
		TrackNumber: snap.Track.TrackNumber,
	}
	if artPath := FindAlbumArt(snap.Track.Ref); artPath != "" {
		meta.ArtUrl = "file://" + artPath
	}
	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.coord.Snapshot().Volume.Cubic(), nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	return p.coord.SetVolume(v)
}

func (p *playerAdapter) Position() (int64, error) {
	return p.coord.Snapshot().Position.Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) { return 1.0, nil }
func (p *playerAdapter) MaximumRate() (float64, error) { return 1.0, nil }

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.coord.Snapshot().QueueLen > 0, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.coord.Snapshot().QueueLen > 0, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.coord.Snapshot().QueueLen > 0, nil
}

func (p *playerAdapter) CanPause() (bool, error)   { return true, nil }
func (p *playerAdapter) CanSeek() (bool, error)    { return true, nil }
func (p *playerAdapter) CanControl() (bool, error) { return true, nil }

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.coord.Snapshot().Repeat {
	case queue.RepeatTrack:
		return types.LoopStatusTrack, nil
	case queue.RepeatQueue:
		return types.LoopStatusPlaylist, nil
	default:
		return types.LoopStatusNone, nil
	}
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusTrack:
		return p.coord.SetRepeat(queue.RepeatTrack)
	case types.LoopStatusPlaylist:
		return p.coord.SetRepeat(queue.RepeatQueue)
	default:
		return p.coord.SetRepeat(queue.RepeatOff)
	}
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.coord.Snapshot().Shuffle, nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	return p.coord.SetShuffle(shuffle)
}

func formatTrackID(ref string) string {
	h := fnv.New64a()
	h.Write([]byte(ref))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
