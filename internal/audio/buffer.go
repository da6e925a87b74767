package audio

import (
	"errors"
	"fmt"
	"time"
)

// SampleBuffer is a decoded, channel-collapsed mono waveform. It is never
// mutated after construction, so any number of goroutines (including the
// audio output callback) may read it without locking.
type SampleBuffer struct {
	samples    []float32
	sampleRate int
}

var ErrInvalidSampleRate = errors.New("sample rate must be positive")

// NewSampleBuffer takes ownership of samples; the caller must not modify
// the slice afterwards.
func NewSampleBuffer(samples []float32, sampleRate int) (*SampleBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	return &SampleBuffer{samples: samples, sampleRate: sampleRate}, nil
}

// Samples returns the underlying sample slice. It must be treated as read-only.
func (b *SampleBuffer) Samples() []float32 { return b.samples }

func (b *SampleBuffer) SampleRate() int { return b.sampleRate }

func (b *SampleBuffer) Len() int { return len(b.samples) }

// DurationSeconds is len(samples)/sample_rate.
func (b *SampleBuffer) DurationSeconds() float64 {
	return float64(len(b.samples)) / float64(b.sampleRate)
}

func (b *SampleBuffer) Duration() time.Duration {
	return time.Duration(b.DurationSeconds() * float64(time.Second))
}

// Float64 returns a float64 copy of the samples for analysis code.
func (b *SampleBuffer) Float64() []float64 {
	out := make([]float64, len(b.samples))
	for i, s := range b.samples {
		out[i] = float64(s)
	}
	return out
}

// Peak returns the largest absolute sample value.
func (b *SampleBuffer) Peak() float32 {
	var peak float32
	for _, s := range b.samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
