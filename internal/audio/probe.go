package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tcolgate/mp3"
)

// Probe reports the duration of path without starting playback. MPEG audio is
// measured by walking frame headers; other formats read the decoder header.
// All resources are released before Probe returns.
func Probe(path string) (time.Duration, error) {
	switch ext := extension(path); ext {
	case ".mp3":
		return probeMP3(path)
	case ".wav":
		return probeStream(path)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func probeStream(path string) (time.Duration, error) {
	stream, format, err := openStream(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	return format.SampleRate.D(stream.Len()), nil
}

func probeMP3(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total time.Duration
	var frames int

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) || (errors.Is(err, io.ErrUnexpectedEOF) && frames > 0) {
				break
			}
			return 0, err
		}
		frames++
		total += frame.Duration()
	}

	if frames == 0 {
		return 0, fmt.Errorf("probe %s: no mpeg frames found", path)
	}
	return total, nil
}
