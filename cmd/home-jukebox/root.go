package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"home-jukebox/internal/audio"
	"home-jukebox/internal/config"
	"home-jukebox/internal/library"
	"home-jukebox/internal/metadata"
	"home-jukebox/internal/player"
)

const (
	outputSampleRate = 44100
	outputBuffer     = 100 * time.Millisecond
)

type rootOptions struct {
	mediaDir string
}

func newRootCommand(logger *log.Logger) *cobra.Command {
	opts := &rootOptions{}

	play := newPlayCommand(opts, logger)
	root := &cobra.Command{
		Use:   "home-jukebox",
		Short: "Play the music in a local folder",
		Long: `home-jukebox builds a playlist from a folder of audio files and plays it
in the terminal. It can also run headless behind a loopback control API.`,
		RunE:          play.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.mediaDir, "media-dir", "", "music directory (default: $JUKEBOX_MEDIA_DIR or ./media)")
	root.Flags().AddFlagSet(play.Flags())

	root.AddCommand(play, newServeCommand(opts, logger), newListCommand(opts, logger))
	return root
}

// loadCatalog resolves the media root and builds the catalog from it.
func loadCatalog(mediaDir string, settings config.PlayerSettings, logger *log.Logger) (*library.Catalog, string, error) {
	root, err := config.ResolveMediaRoot(mediaDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolve media root: %w", err)
	}

	sources, err := library.Enumerate(root, logger)
	if err != nil {
		return nil, "", fmt.Errorf("scan %s: %w", root, err)
	}

	builder := library.NewBuilder(library.Options{
		Extensions:    settings.Extensions,
		Unsupported:   config.UnsupportedExtensions(),
		UnknownArtist: settings.UnknownArtist,
		UnknownAlbum:  settings.UnknownAlbum,
	}, metadata.NewResolver(logger), audio.Probe, logger)

	return builder.Build(sources), root, nil
}

func newCoordinator(catalog *library.Catalog, factory audio.Factory, settings config.PlayerSettings, logger *log.Logger) *player.Coordinator {
	volume := settings.InitialVolume
	return player.NewCoordinator(catalog, factory, player.Options{
		TickInterval:  settings.TickInterval,
		VolumeSteps:   settings.VolumeSteps,
		InitialVolume: &volume,
		Logger:        logger,
	})
}
