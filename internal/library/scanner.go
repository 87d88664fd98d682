package library

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	zlog "github.com/rs/zerolog/log"
)

// ScanStats summarizes one catalog refresh.
type ScanStats struct {
	Added   int
	Updated int
	Removed int
	Bytes   int64 // total size of files read for tagging
}

// Scan walks the source directories and brings the catalog in sync:
// new files are added, files with a changed mtime are re-tagged, and rows
// whose file disappeared from a scanned source are removed. Unreadable
// files and directories are skipped.
func (s *Store) Scan(sources []string) (ScanStats, error) {
	var stats ScanStats

	existing, err := s.existingPaths()
	if err != nil {
		return stats, err
	}

	discovered := make(map[string]struct{})
	for _, src := range sources {
		err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // skip unreadable entries, keep walking
			}
			if d.IsDir() || !isAudioFile(path) {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return nil //nolint:nilerr // skip files we cannot stat
			}

			discovered[path] = struct{}{}
			mtime := info.ModTime().Unix()
			prev, known := existing[path]
			if known && prev == mtime {
				return nil
			}

			rec := readTrack(path, mtime)
			if upErr := s.Upsert(rec); upErr != nil {
				zlog.Warn().Err(upErr).Str("path", path).Msg("cannot catalog track")
				return nil
			}
			stats.Bytes += info.Size()
			if known {
				stats.Updated++
			} else {
				stats.Added++
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
	}

	// Removal only applies to paths under a scanned source: other sources
	// keep their rows untouched.
	for path := range existing {
		if _, ok := discovered[path]; ok {
			continue
		}
		if !underAny(path, sources) {
			continue
		}
		if err := s.Remove(path); err != nil {
			return stats, err
		}
		stats.Removed++
	}

	zlog.Info().
		Int("added", stats.Added).
		Int("updated", stats.Updated).
		Int("removed", stats.Removed).
		Str("read", humanize.Bytes(uint64(stats.Bytes))).
		Msg("catalog scan finished")
	return stats, nil
}

// readTrack extracts tags from the file. Files without readable tags are
// still cataloged, titled after their filename.
func readTrack(path string, mtime int64) TrackRecord {
	rec := TrackRecord{
		Path:  path,
		MTime: mtime,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	f, err := os.Open(path)
	if err != nil {
		return rec
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return rec
	}
	if t := m.Title(); t != "" {
		rec.Title = t
	}
	rec.Artist = m.Artist()
	rec.Album = m.Album()
	rec.TrackNumber, _ = m.Track()
	return rec
}

// isAudioFile matches the formats the pipeline can decode.
func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".flac", ".ogg", ".oga", ".wav":
		return true
	default:
		return false
	}
}

func underAny(path string, sources []string) bool {
	for _, src := range sources {
		rel, err := filepath.Rel(src, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
