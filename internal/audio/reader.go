package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyFile         = errors.New("audio file is empty")
)

const wavFormatPCM = 1

// ReadWav decodes an integer PCM WAV file (8/16/24/32 bit, any channel
// count) into a mono SampleBuffer normalized to [-1, 1].
func ReadWav(path string) (*SampleBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedFormat, path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV audio format %d (only PCM supported)", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	samples, err := intBufferToMono(pcm)
	if err != nil {
		return nil, err
	}
	return NewSampleBuffer(samples, int(dec.SampleRate))
}

// intBufferToMono averages interleaved channels and scales by bit depth.
func intBufferToMono(pcm *goaudio.IntBuffer) ([]float32, error) {
	if pcm == nil || pcm.Format == nil {
		return nil, errors.New("decoder returned no format information")
	}
	channels := pcm.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	bitDepth := pcm.SourceBitDepth
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}

	scale := 1.0 / float64(int64(1)<<uint(bitDepth-1))
	offset := 0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = 128
	}

	frames := len(pcm.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(pcm.Data[i*channels+c] - offset)
		}
		out[i] = float32(sum / float64(channels) * scale)
	}
	return out, nil
}
