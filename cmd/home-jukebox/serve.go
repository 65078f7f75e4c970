package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"home-jukebox/internal/audio"
	"home-jukebox/internal/config"
)

func newServeCommand(root *rootOptions, logger *log.Logger) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Play headless, controlled over the loopback HTTP API",
		Long: `Run the player without a terminal UI. Playback is driven through the
control API (see JUKEBOX_TOKEN_FILE for access tokens).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listenAddr == "" {
				listenAddr = config.ListenAddr()
			}

			settings, err := config.ResolvePlayerSettings()
			if err != nil {
				return err
			}

			catalog, mediaRoot, err := loadCatalog(root.mediaDir, settings, logger)
			if err != nil {
				return err
			}

			output := audio.NewOutput(outputSampleRate, outputBuffer)
			defer output.Close()

			coordinator := newCoordinator(catalog, output.Factory(), settings, logger)
			defer func() {
				if err := coordinator.Close(); err != nil {
					logger.Printf("error closing coordinator: %v", err)
				}
			}()

			api, err := newControlAPI(listenAddr, coordinator, catalog, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Printf("serving %d tracks from %s", catalog.Len(), mediaRoot)
			if err := api.Serve(ctx); err != nil {
				return err
			}
			logger.Println("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "control API address (default: $JUKEBOX_LISTEN_ADDR or 127.0.0.1:8090)")
	return cmd
}
