package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"home-jukebox/internal/audio"
	"home-jukebox/internal/config"
	"home-jukebox/internal/tui"
	"home-jukebox/internal/ui"
)

func newPlayCommand(root *rootOptions, logger *log.Logger) *cobra.Command {
	var apiAddr string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Open the interactive player",
		Long: `Open the terminal player over the media directory.

Keyboard shortcuts:
  Space        Play/Pause
  n / p        Next / previous track
  ↑/↓, Enter   Choose and play a track
  ←/→          Scrub, Enter to seek, Esc to cancel
  +/-          Volume up/down
  ?            Help
  q, Ctrl+C    Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the UI, so logs go to a file.
			logPath, err := config.LogFile()
			if err != nil {
				return fmt.Errorf("resolve log file: %w", err)
			}
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer logFile.Close()
			fileLogger := log.New(logFile, logger.Prefix(), logger.Flags())

			settings, err := config.ResolvePlayerSettings()
			if err != nil {
				return err
			}

			catalog, mediaRoot, err := loadCatalog(root.mediaDir, settings, fileLogger)
			if err != nil {
				return err
			}
			fileLogger.Printf("playing %d tracks from %s", catalog.Len(), mediaRoot)

			output := audio.NewOutput(outputSampleRate, outputBuffer)
			defer output.Close()

			coordinator := newCoordinator(catalog, output.Factory(), settings, fileLogger)
			defer func() {
				if err := coordinator.Close(); err != nil {
					fileLogger.Printf("error closing coordinator: %v", err)
				}
			}()

			sync := ui.NewSynchronizer(catalog, coordinator, ui.Options{Logger: fileLogger})
			unsubscribe := coordinator.Subscribe(sync)
			defer unsubscribe()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if apiAddr != "" {
				api, err := newControlAPI(apiAddr, coordinator, catalog, fileLogger)
				if err != nil {
					return err
				}
				apiCtx, cancelAPI := context.WithCancel(ctx)
				defer cancelAPI()
				go func() {
					if err := api.Serve(apiCtx); err != nil {
						fileLogger.Printf("control API error: %v", err)
					}
				}()
			}

			return tui.Run(ctx, coordinator, sync, catalog.Tracks())
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "", "also serve the control API on this loopback address")
	return cmd
}
