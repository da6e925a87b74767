package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// ReadMP3 decodes an MP3 file. go-mp3 always yields 16-bit little-endian
// stereo, which is averaged down to mono.
func ReadMP3(path string) (*SampleBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decoding mp3: %w", err)
	}

	const bytesPerFrame = 4
	frames := len(raw) / bytesPerFrame
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(raw[i*bytesPerFrame:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*bytesPerFrame+2:]))
		out[i] = float32((float64(l) + float64(r)) * 0.5 / 32768.0)
	}
	return NewSampleBuffer(out, dec.SampleRate())
}
