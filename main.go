// Command coda is a desktop media-playback daemon: it owns the audio
// pipeline, exposes the player over MPRIS and persists its queue between
// runs.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/ldelattre/coda/internal/config"
	"github.com/ldelattre/coda/internal/daemon"
	"github.com/ldelattre/coda/internal/logger"
)

var (
	app        = kingpin.New("coda", "Desktop media-playback daemon")
	configPath = app.Flag("config", "Path to config file").String()
	logLevel   = app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	logOutput  = app.Flag("log-output", "Log output (stdout, stderr, or a file path)").String()

	runCmd = app.Command("run", "Run the playback daemon (default)").Default()

	scanCmd     = app.Command("scan", "Refresh the track catalog and exit")
	scanSources = scanCmd.Arg("paths", "Directories to scan (default: configured library sources)").Strings()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coda: %v\n", err)
		os.Exit(1)
	}

	// CLI flags win over the config file.
	level, output := cfg.Log.Level, cfg.Log.Output
	if *logLevel != "" {
		level = *logLevel
	}
	if *logOutput != "" {
		output = *logOutput
	}
	if err := logger.Init(level, output); err != nil {
		fmt.Fprintf(os.Stderr, "coda: init logging: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case scanCmd.FullCommand():
		err = daemon.Scan(cfg, *scanSources)
	case runCmd.FullCommand():
		err = daemon.Run(cfg)
	}
	if err != nil {
		zlog.Error().Err(err).Msg("coda failed")
		os.Exit(1)
	}
}
