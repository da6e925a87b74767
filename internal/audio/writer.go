package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWav writes buf as a 16-bit mono PCM WAV file.
func WriteWav(path string, buf *SampleBuffer) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, buf.SampleRate(), 16, 1, wavFormatPCM)

	data := make([]int, buf.Len())
	for i, s := range buf.Samples() {
		v := math.Round(float64(s) * 32767)
		data[i] = int(math.Max(-32768, math.Min(32767, v)))
	}

	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.SampleRate()},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("writing PCM data: %w", err)
	}
	return enc.Close()
}
