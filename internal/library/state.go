package library

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	dbutil "github.com/ldelattre/coda/internal/db"
	"github.com/ldelattre/coda/internal/playback"
	"github.com/ldelattre/coda/internal/queue"
)

// SaveQueue persists the queue and player state so the daemon resumes
// where it left off.
func (s *Store) SaveQueue(dump playback.QueueDump) error {
	return dbutil.WithTx(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM queue_tracks`); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO queue_state (id, current_index, repeat_mode, shuffle, volume)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index,
				repeat_mode = excluded.repeat_mode,
				shuffle = excluded.shuffle,
				volume = excluded.volume
		`, dump.Cursor, int(dump.Repeat), dump.Shuffle, dump.Volume)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO queue_tracks (position, path, title, artist, album, track_number, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range dump.Tracks {
			_, err = stmt.Exec(i, t.Ref, t.Title, t.Artist, t.Album, t.TrackNumber, t.Duration.Milliseconds())
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadQueue returns the persisted queue state and cubic volume level. A
// fresh database yields an empty restore and full volume.
func (s *Store) LoadQueue() (*playback.Restore, float64, error) {
	restore := &playback.Restore{Cursor: -1}
	vol := 1.0

	row := s.db.QueryRow(`SELECT current_index, repeat_mode, shuffle, volume FROM queue_state WHERE id = 1`)
	var repeat int
	err := row.Scan(&restore.Cursor, &repeat, &restore.Shuffle, &vol)
	if errors.Is(err, sql.ErrNoRows) {
		return restore, vol, nil
	}
	if err != nil {
		return nil, 0, err
	}
	restore.Repeat = queue.RepeatMode(repeat)

	rows, err := s.db.Query(`
		SELECT path, title, artist, album, track_number, duration_ms
		FROM queue_tracks
		ORDER BY position
	`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t                   queue.Track
			artist, album       sql.NullString
			trackNumber, duraMS sql.NullInt64
		)
		if err := rows.Scan(&t.Ref, &t.Title, &artist, &album, &trackNumber, &duraMS); err != nil {
			return nil, 0, err
		}
		t.Artist = dbutil.NullStringValue(artist)
		t.Album = dbutil.NullStringValue(album)
		t.TrackNumber = int(dbutil.NullInt64Value(trackNumber))
		t.Duration = time.Duration(dbutil.NullInt64Value(duraMS)) * time.Millisecond
		restore.Tracks = append(restore.Tracks, t)
	}
	return restore, vol, rows.Err()
}
