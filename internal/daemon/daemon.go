// Package daemon assembles the player: catalog, pipeline, coordinator and
// the D-Bus surfaces, and runs them until a shutdown signal.
package daemon

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ldelattre/coda/internal/config"
	"github.com/ldelattre/coda/internal/library"
	"github.com/ldelattre/coda/internal/mpris"
	"github.com/ldelattre/coda/internal/notify"
	"github.com/ldelattre/coda/internal/pipeline"
	"github.com/ldelattre/coda/internal/playback"
	"github.com/ldelattre/coda/internal/volume"
)

// Run starts the daemon and blocks until SIGINT/SIGTERM. The queue and
// player state are persisted on the way out.
func Run(cfg *config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(cfg.LibrarySources) > 0 {
		// Refresh the catalog in the background; playback starts from the
		// restored queue without waiting for the walk.
		go func() {
			if _, scanErr := store.Scan(cfg.LibrarySources); scanErr != nil {
				zlog.Warn().Err(scanErr).Msg("catalog scan failed")
			}
		}()
	}

	restore, vol, err := store.LoadQueue()
	if err != nil {
		return errors.Wrap(err, "restore queue state")
	}
	if len(restore.Tracks) == 0 {
		// First run: seed the queue from the whole catalog so remote
		// controls have something to play.
		tracks, loadErr := store.AllTracks()
		if loadErr != nil {
			return loadErr
		}
		restore.Tracks = tracks
		if len(tracks) > 0 {
			restore.Cursor = 0
		}
		if cfg.Playback.Volume > 0 {
			vol = cfg.Playback.Volume
		}
	}
	zlog.Info().
		Int("tracks", len(restore.Tracks)).
		Int("cursor", restore.Cursor).
		Msg("queue restored")

	coord := playback.New(playback.Config{
		Gapless:         cfg.Playback.GaplessEnabled(),
		PrerollLead:     cfg.Playback.PrerollLead(),
		TeardownTimeout: cfg.Playback.TeardownTimeout(),
		Volume:          volume.FromCubic(vol),
	}, store, pipeline.NewBeepFactory(cfg.Playback.PositionTick()), restore)

	mprisAdapter, err := mpris.New(coord)
	if err != nil {
		_ = coord.Close()
		return errors.Wrap(err, "start mpris adapter")
	}

	notifier, err := notify.New()
	if err != nil {
		zlog.Warn().Err(err).Msg("desktop notifications unavailable")
	}
	var watcher *notify.Watcher
	if notifier != nil {
		watcher = notify.Watch(notifier, coord)
	}

	zlog.Info().Msg("coda running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zlog.Info().Stringer("signal", sig).Msg("shutting down")

	if dump, dumpErr := coord.Dump(); dumpErr == nil {
		if saveErr := store.SaveQueue(dump); saveErr != nil {
			zlog.Error().Err(saveErr).Msg("cannot persist queue state")
		}
	}

	if watcher != nil {
		watcher.Stop()
	}
	if closeErr := mprisAdapter.Close(); closeErr != nil {
		zlog.Warn().Err(closeErr).Msg("mpris adapter close failed")
	}
	return coord.Close()
}

// Scan refreshes the catalog once and exits.
func Scan(cfg *config.Config, sources []string) error {
	if len(sources) == 0 {
		sources = cfg.LibrarySources
	}
	if len(sources) == 0 {
		return errors.New("no library sources configured")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Scan(sources)
	return err
}

func openStore(cfg *config.Config) (*library.Store, error) {
	path := cfg.DBPath
	if path == "" {
		var err error
		path, err = library.DefaultPath()
		if err != nil {
			return nil, errors.Wrap(err, "locate catalog")
		}
	}
	store, err := library.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	zlog.Debug().Str("path", path).Msg("catalog opened")
	return store, nil
}
