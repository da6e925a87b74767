package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/himanishpuri/AudioScope/pkg/utils"
)

type DecodeOptions struct {
	TempDir    string // scratch space for ffmpeg conversions
	FFmpegPath string
}

// Decode loads path into a SampleBuffer. WAV and MP3 are decoded natively;
// anything else (and WAV variants the native reader rejects, e.g. float PCM)
// goes through ffmpeg.
func Decode(ctx context.Context, path string, opts DecodeOptions) (*SampleBuffer, error) {
	size, err := utils.FileSize(path)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	switch utils.Ext(path) {
	case ".wav", ".wave":
		buf, err := ReadWav(path)
		if errors.Is(err, ErrUnsupportedFormat) && FFmpegAvailable(opts.FFmpegPath) {
			return decodeWithFFmpeg(ctx, path, opts)
		}
		return buf, err
	case ".mp3":
		return ReadMP3(path)
	default:
		if !FFmpegAvailable(opts.FFmpegPath) {
			return nil, fmt.Errorf("%w: %s (ffmpeg not available)", ErrUnsupportedFormat, utils.Ext(path))
		}
		return decodeWithFFmpeg(ctx, path, opts)
	}
}

func decodeWithFFmpeg(ctx context.Context, path string, opts DecodeOptions) (*SampleBuffer, error) {
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	wavPath, err := ConvertToMonoWAV(ctx, path, tempDir, ConvertWAVConfig{FFmpegPath: opts.FFmpegPath})
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer os.Remove(wavPath)

	return ReadWav(wavPath)
}
