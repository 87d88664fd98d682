package library

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	dbutil "github.com/ldelattre/coda/internal/db"
	"github.com/ldelattre/coda/internal/playback"
	"github.com/ldelattre/coda/internal/queue"
)

// TrackRecord is a catalog row. Path is the track reference handed out to
// the rest of the system.
type TrackRecord struct {
	Path        string
	MTime       int64
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	Duration    time.Duration
}

// Resolve implements playback.Resolver: it turns a catalog path into a
// playable file URI plus whatever metadata the catalog has.
func (s *Store) Resolve(ref string) (*playback.Resolved, error) {
	row := s.db.QueryRow(`
		SELECT path, title, artist, album, track_number, duration_ms
		FROM tracks WHERE path = ?
	`, ref)

	var (
		path, title         string
		artist, album       sql.NullString
		trackNumber, duraMS sql.NullInt64
	)
	err := row.Scan(&path, &title, &artist, &album, &trackNumber, &duraMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(playback.ErrTrackNotFound, "track %q", ref)
	}
	if err != nil {
		return nil, err
	}

	return &playback.Resolved{
		URI:          "file://" + path,
		DurationHint: time.Duration(dbutil.NullInt64Value(duraMS)) * time.Millisecond,
		Title:        title,
		Artist:       dbutil.NullStringValue(artist),
		Album:        dbutil.NullStringValue(album),
		TrackNumber:  int(dbutil.NullInt64Value(trackNumber)),
	}, nil
}

// Upsert inserts or refreshes a catalog row keyed by path.
func (s *Store) Upsert(t TrackRecord) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO tracks (path, mtime, title, artist, album, track_number, duration_ms, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			track_number = excluded.track_number,
			duration_ms = excluded.duration_ms,
			updated_at = excluded.updated_at
	`, t.Path, t.MTime, t.Title, t.Artist, t.Album, t.TrackNumber, t.Duration.Milliseconds(), now, now)
	return err
}

// Remove deletes the catalog row for path.
func (s *Store) Remove(path string) error {
	_, err := s.db.Exec(`DELETE FROM tracks WHERE path = ?`, path)
	return err
}

// Count returns the number of cataloged tracks.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&n)
	return n, err
}

// AllTracks returns the full catalog in artist/album/track order, ready to
// seed a queue.
func (s *Store) AllTracks() ([]queue.Track, error) {
	rows, err := s.db.Query(`
		SELECT path, title, artist, album, track_number, duration_ms
		FROM tracks
		ORDER BY artist, album, track_number, path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []queue.Track
	for rows.Next() {
		var (
			t                   queue.Track
			artist, album       sql.NullString
			trackNumber, duraMS sql.NullInt64
		)
		if err := rows.Scan(&t.Ref, &t.Title, &artist, &album, &trackNumber, &duraMS); err != nil {
			return nil, err
		}
		t.Artist = dbutil.NullStringValue(artist)
		t.Album = dbutil.NullStringValue(album)
		t.TrackNumber = int(dbutil.NullInt64Value(trackNumber))
		t.Duration = time.Duration(dbutil.NullInt64Value(duraMS)) * time.Millisecond
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// existingPaths returns path -> mtime for every cataloged track.
func (s *Store) existingPaths() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT path, mtime FROM tracks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, err
		}
		existing[path] = mtime
	}
	return existing, rows.Err()
}
