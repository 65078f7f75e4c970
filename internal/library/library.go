package library

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"home-jukebox/internal/metadata"
	"home-jukebox/internal/models"
)

const (
	// DefaultUnknownArtist is shown when no artist could be resolved.
	DefaultUnknownArtist = "Unknown Artist"
	// DefaultUnknownAlbum is shown when no album could be resolved.
	DefaultUnknownAlbum = "Unknown Album"
)

// Resolver resolves descriptive tags for a source. It must never fail.
type Resolver interface {
	Resolve(source string) metadata.Tags
}

// Prober reports the duration of a source. Implementations must release
// whatever they open before returning.
type Prober func(source string) (time.Duration, error)

// Options controls which sources are admitted to the catalog and how missing
// metadata is rendered.
type Options struct {
	// Extensions is the allow-list, matched case-insensitively.
	Extensions []string
	// Unsupported lists recognised audio extensions that are skipped with a
	// log line rather than silently.
	Unsupported []string

	UnknownArtist string
	UnknownAlbum  string
}

// Builder turns an ordered list of sources into a Catalog.
type Builder struct {
	allowed       map[string]struct{}
	unsupported   map[string]struct{}
	unknownArtist string
	unknownAlbum  string

	resolver Resolver
	probe    Prober
	logger   *log.Logger
}

// NewBuilder creates a Builder. A nil probe reports every duration as zero.
func NewBuilder(opts Options, resolver Resolver, probe Prober, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	if resolver == nil {
		resolver = metadata.NewResolver(logger)
	}
	if probe == nil {
		probe = func(string) (time.Duration, error) { return 0, nil }
	}

	b := &Builder{
		allowed:       extensionSet(opts.Extensions),
		unsupported:   extensionSet(opts.Unsupported),
		unknownArtist: opts.UnknownArtist,
		unknownAlbum:  opts.UnknownAlbum,
		resolver:      resolver,
		probe:         probe,
		logger:        logger,
	}
	if b.unknownArtist == "" {
		b.unknownArtist = DefaultUnknownArtist
	}
	if b.unknownAlbum == "" {
		b.unknownAlbum = DefaultUnknownAlbum
	}
	return b
}

// Build filters sources through the allow-list and creates one Track per
// retained source, in input order. Metadata and probe failures degrade the
// track instead of dropping it.
func (b *Builder) Build(sources []string) *Catalog {
	tracks := make([]models.Track, 0, len(sources))

	for _, source := range sources {
		ext := strings.ToLower(filepath.Ext(source))
		if _, ok := b.allowed[ext]; !ok {
			if _, known := b.unsupported[ext]; known {
				b.logger.Printf("skipping unsupported audio format: %s", filepath.Base(source))
			}
			continue
		}

		tracks = append(tracks, b.buildTrack(source))
	}

	b.logger.Printf("catalog built with %d tracks from %d sources", len(tracks), len(sources))
	return &Catalog{tracks: tracks}
}

func (b *Builder) buildTrack(source string) models.Track {
	tags := b.resolver.Resolve(source)

	track := models.Track{
		Title:    tags.Title,
		Artist:   tags.Artist,
		Album:    tags.Album,
		Source:   source,
		Filename: filepath.Base(source),
	}
	if track.Title == "" {
		track.Title = metadata.TitleFromFilename(track.Filename)
	}
	if track.Artist == "" {
		track.Artist = b.unknownArtist
	}
	if track.Album == "" {
		track.Album = b.unknownAlbum
	}

	if info, err := os.Stat(source); err == nil {
		track.FilesizeBytes = info.Size()
	}

	duration, err := b.probe(source)
	if err != nil {
		b.logger.Printf("duration probe failed for %s: %v", track.Filename, err)
		duration = 0
	}
	track.DurationSeconds = int(duration / time.Second)

	return track
}

// Catalog is the ordered, read-only list of playable tracks. Position in the
// catalog is a track's identity.
type Catalog struct {
	tracks []models.Track
}

// NewCatalog wraps a copy of tracks.
func NewCatalog(tracks []models.Track) *Catalog {
	c := &Catalog{tracks: make([]models.Track, len(tracks))}
	copy(c.tracks, tracks)
	return c
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.tracks)
}

// At returns the track at index i.
func (c *Catalog) At(i int) (models.Track, bool) {
	if i < 0 || i >= c.Len() {
		return models.Track{}, false
	}
	return c.tracks[i], true
}

// Tracks returns a copy of the catalog contents.
func (c *Catalog) Tracks() []models.Track {
	result := make([]models.Track, c.Len())
	if c != nil {
		copy(result, c.tracks)
	}
	return result
}

// Enumerate lists the regular files below root in lexical order. Unreadable
// entries are logged and skipped.
func Enumerate(root string, logger *log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.Default()
	}

	var sources []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Printf("walk error for %s: %v", path, err)
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		sources = append(sources, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(sources)
	return sources, nil
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
