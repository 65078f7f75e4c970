package audio

import (
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// openStream decodes path with the beep decoder matching its extension. The
// returned streamer owns the file and closes it on Close.
func openStream(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := extension(path)
	switch ext {
	case ".mp3", ".wav":
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	if ext == ".mp3" {
		stream, format, err = mp3.Decode(f)
	} else {
		stream, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return stream, format, nil
}
