package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/ldelattre/coda/internal/playback"
	"github.com/ldelattre/coda/internal/queue"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveKnownTrack(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Upsert(TrackRecord{
		Path:        "/music/artist/album/01 song.flac",
		MTime:       1234,
		Title:       "Song",
		Artist:      "Artist",
		Album:       "Album",
		TrackNumber: 1,
		Duration:    3 * time.Minute,
	}))

	r, err := s.Resolve("/music/artist/album/01 song.flac")
	require.NoError(t, err)
	require.Equal(t, "file:///music/artist/album/01 song.flac", r.URI)
	require.Equal(t, "Song", r.Title)
	require.Equal(t, "Artist", r.Artist)
	require.Equal(t, "Album", r.Album)
	require.Equal(t, 1, r.TrackNumber)
	require.Equal(t, 3*time.Minute, r.DurationHint)
}

func TestResolveUnknownTrack(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Resolve("/music/missing.mp3")
	require.True(t, errors.Is(err, playback.ErrTrackNotFound), "err = %v", err)
}

func TestUpsertRefreshesExistingRow(t *testing.T) {
	s := openTestStore(t)

	rec := TrackRecord{Path: "/music/a.mp3", MTime: 1, Title: "Old"}
	require.NoError(t, s.Upsert(rec))
	rec.MTime = 2
	rec.Title = "New"
	require.NoError(t, s.Upsert(rec))

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	r, err := s.Resolve("/music/a.mp3")
	require.NoError(t, err)
	require.Equal(t, "New", r.Title)
}

func TestAllTracksOrdering(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Upsert(TrackRecord{Path: "/m/b2.mp3", Artist: "B", Album: "X", TrackNumber: 2, Title: "b2"}))
	require.NoError(t, s.Upsert(TrackRecord{Path: "/m/a.mp3", Artist: "A", Album: "Y", TrackNumber: 1, Title: "a"}))
	require.NoError(t, s.Upsert(TrackRecord{Path: "/m/b1.mp3", Artist: "B", Album: "X", TrackNumber: 1, Title: "b1"}))

	tracks, err := s.AllTracks()
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	require.Equal(t, []string{"a", "b1", "b2"}, []string{tracks[0].Title, tracks[1].Title, tracks[2].Title})
}

func TestQueueStateRoundTrip(t *testing.T) {
	s := openTestStore(t)

	dump := playback.QueueDump{
		Tracks: []queue.Track{
			{Ref: "/m/a.mp3", Title: "A", Artist: "Artist", Album: "Album", TrackNumber: 1, Duration: time.Minute},
			{Ref: "/m/b.mp3", Title: "B"},
		},
		Cursor:  1,
		Repeat:  queue.RepeatQueue,
		Shuffle: true,
		Volume:  0.7,
	}
	require.NoError(t, s.SaveQueue(dump))

	restore, vol, err := s.LoadQueue()
	require.NoError(t, err)
	require.Equal(t, dump.Tracks, restore.Tracks)
	require.Equal(t, 1, restore.Cursor)
	require.Equal(t, queue.RepeatQueue, restore.Repeat)
	require.True(t, restore.Shuffle)
	require.Equal(t, 0.7, vol)
}

func TestSaveQueueReplacesPrevious(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveQueue(playback.QueueDump{
		Tracks: []queue.Track{{Ref: "/m/a.mp3", Title: "A"}},
		Cursor: 0, Volume: 1,
	}))
	require.NoError(t, s.SaveQueue(playback.QueueDump{
		Tracks: []queue.Track{{Ref: "/m/b.mp3", Title: "B"}},
		Cursor: 0, Volume: 1,
	}))

	restore, _, err := s.LoadQueue()
	require.NoError(t, err)
	require.Len(t, restore.Tracks, 1)
	require.Equal(t, "/m/b.mp3", restore.Tracks[0].Ref)
}

func TestLoadQueueFreshDatabase(t *testing.T) {
	s := openTestStore(t)

	restore, vol, err := s.LoadQueue()
	require.NoError(t, err)
	require.Empty(t, restore.Tracks)
	require.Equal(t, -1, restore.Cursor)
	require.Equal(t, 1.0, vol)
}

func TestScanAddsUpdatesAndRemoves(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()

	// Not real audio: tag reading fails and the scanner falls back to the
	// filename as title.
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}
	a := write("one.mp3", "not really audio")
	write("two.flac", "also not audio")
	write("notes.txt", "ignored")

	stats, err := s.Scan([]string{dir})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Added)
	require.Equal(t, 0, stats.Removed)

	r, err := s.Resolve(a)
	require.NoError(t, err)
	require.Equal(t, "one", r.Title)

	// Unchanged files are skipped on rescan.
	stats, err = s.Scan([]string{dir})
	require.NoError(t, err)
	require.Zero(t, stats.Added)
	require.Zero(t, stats.Updated)

	// A touched file is re-tagged, a deleted one is dropped.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(a, future, future))
	require.NoError(t, os.Remove(filepath.Join(dir, "two.flac")))

	stats, err = s.Scan([]string{dir})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Updated)
	require.Equal(t, 1, stats.Removed)

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestScanLeavesOtherSourcesAlone(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Upsert(TrackRecord{Path: "/elsewhere/kept.mp3", Title: "kept"}))

	stats, err := s.Scan([]string{t.TempDir()})
	require.NoError(t, err)
	require.Zero(t, stats.Removed)

	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
