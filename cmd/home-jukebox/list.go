package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"home-jukebox/internal/config"
	"home-jukebox/internal/library"
)

func newListCommand(root *rootOptions, logger *log.Logger) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the catalog built from the media directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.ResolvePlayerSettings()
			if err != nil {
				return err
			}

			catalog, _, err := loadCatalog(root.mediaDir, settings, logger)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Tracks())
			}
			return writeCatalogTable(cmd.OutOrStdout(), catalog)
		},
	}
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	return cmd
}

func writeCatalogTable(out io.Writer, catalog *library.Catalog) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tARTIST\tALBUM\tLENGTH\tSIZE")
	for i, track := range catalog.Tracks() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			strconv.Itoa(i+1),
			track.Title,
			track.Artist,
			track.Album,
			track.Duration(),
			humanize.Bytes(uint64(track.FilesizeBytes)),
		)
	}
	return w.Flush()
}
