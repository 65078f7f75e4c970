package metadata

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// UnknownTitle is returned by TitleFromFilename when no name is available.
const UnknownTitle = "Unknown Title"

// Tags holds the descriptive fields resolved for a single source.
type Tags struct {
	Title  string
	Artist string
	Album  string
}

// TagReader reads descriptive tags from the source at path.
type TagReader interface {
	ReadTags(path string) (Tags, error)
}

// TagReaderFunc adapts a plain function to the TagReader interface.
type TagReaderFunc func(path string) (Tags, error)

// ReadTags calls f(path).
func (f TagReaderFunc) ReadTags(path string) (Tags, error) {
	return f(path)
}

// Resolver maps a source to best-effort tags. The rich reader is consulted
// first for containers listed in richExtensions; the generic reader is used
// otherwise or when the rich read fails. The two passes are exclusive: a
// successful pass is used wholesale, never merged field by field.
type Resolver struct {
	rich           TagReader
	generic        TagReader
	richExtensions map[string]struct{}
	logger         *log.Logger
}

// NewResolver creates a Resolver backed by the ID3 rich reader and the
// format-sniffing generic reader.
func NewResolver(logger *log.Logger) *Resolver {
	return NewResolverWithReaders(ID3Reader(), GenericReader(), logger)
}

// NewResolverWithReaders creates a Resolver with explicit readers. A nil
// reader is treated as one that always fails.
func NewResolverWithReaders(rich, generic TagReader, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	if rich == nil {
		rich = failingReader("rich")
	}
	if generic == nil {
		generic = failingReader("generic")
	}

	return &Resolver{
		rich:           rich,
		generic:        generic,
		richExtensions: map[string]struct{}{".mp3": {}},
		logger:         logger,
	}
}

// Resolve returns the tags for source. It never fails: read errors are logged
// and absorbed, and an empty title falls back to the filename heuristic.
// Artist and album are left empty when unknown.
func (r *Resolver) Resolve(source string) Tags {
	tags := r.read(source)

	tags.Title = strings.TrimSpace(tags.Title)
	tags.Artist = strings.TrimSpace(tags.Artist)
	tags.Album = strings.TrimSpace(tags.Album)

	if tags.Title == "" {
		tags.Title = TitleFromFilename(filepath.Base(source))
	}
	return tags
}

func (r *Resolver) read(source string) Tags {
	if r.hasRichContainer(source) {
		tags, err := r.rich.ReadTags(source)
		if err == nil {
			r.logger.Printf("rich tags for %s: title=%q artist=%q album=%q", filepath.Base(source), tags.Title, tags.Artist, tags.Album)
			return tags
		}
		r.logger.Printf("rich tag read failed for %s: %v", filepath.Base(source), err)
	}

	tags, err := r.generic.ReadTags(source)
	if err != nil {
		r.logger.Printf("generic tag read failed for %s: %v", filepath.Base(source), err)
		return Tags{}
	}
	r.logger.Printf("generic tags for %s: title=%q artist=%q album=%q", filepath.Base(source), tags.Title, tags.Artist, tags.Album)
	return tags
}

func (r *Resolver) hasRichContainer(source string) bool {
	_, ok := r.richExtensions[strings.ToLower(filepath.Ext(source))]
	return ok
}

// TitleFromFilename derives a display title from a file name: the extension
// is stripped and underscores and hyphens become spaces. Everything else,
// including non-ASCII text, is kept as is.
func TitleFromFilename(name string) string {
	if name == "" {
		return UnknownTitle
	}
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		name = name[:dot]
	}
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

// ID3Reader returns the rich reader for MPEG audio. The stream must contain
// at least one decodable frame; ID3v2 is preferred over ID3v1. A valid stream
// without any tag is a successful read with empty fields.
func ID3Reader() TagReader {
	return TagReaderFunc(readID3)
}

// GenericReader returns a reader that sniffs the container (ID3, MP4, FLAC,
// OGG, DSF) and reads whatever tags it finds.
func GenericReader() TagReader {
	return TagReaderFunc(readGeneric)
}

func readID3(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, err
	}
	defer f.Close()

	if err := validateMPEGStream(f); err != nil {
		return Tags{}, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Tags{}, err
	}
	meta, err := tag.ReadID3v2Tags(f)
	if err == nil {
		return tagsFrom(meta), nil
	}

	meta, err = tag.ReadID3v1Tags(f)
	if errors.Is(err, tag.ErrNotID3v1) {
		return Tags{}, nil
	}
	if err != nil {
		return Tags{}, err
	}
	return tagsFrom(meta), nil
}

func readGeneric(path string) (Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}, err
	}
	return tagsFrom(meta), nil
}

func validateMPEGStream(r io.Reader) error {
	decoder := mp3.NewDecoder(r)
	var frame mp3.Frame
	var skipped int
	if err := decoder.Decode(&frame, &skipped); err != nil {
		return fmt.Errorf("not an mpeg audio stream: %w", err)
	}
	return nil
}

func tagsFrom(meta tag.Metadata) Tags {
	return Tags{
		Title:  strings.TrimSpace(meta.Title()),
		Artist: strings.TrimSpace(meta.Artist()),
		Album:  strings.TrimSpace(meta.Album()),
	}
}

func failingReader(name string) TagReader {
	return TagReaderFunc(func(string) (Tags, error) {
		return Tags{}, fmt.Errorf("%s reader not configured", name)
	})
}
