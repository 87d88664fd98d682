//go:build linux

package notify

import "github.com/ldelattre/coda/internal/mpris"

// FindAlbumArtPath returns the album art path for a track, if any.
func FindAlbumArtPath(trackPath string) string {
	return mpris.FindAlbumArt(trackPath)
}
