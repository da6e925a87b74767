package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/model"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Tunables
const (
	DefaultWindowSize = 2048
	DefaultHopSize    = 512

	// TopDB is the dynamic range kept by ToDecibels below the global peak.
	TopDB = 80.0
	// amin guards log10 against zero magnitudes.
	amin = 1e-5
)

var ErrInvalidParams = errors.New("invalid analysis parameters")

// Params controls the STFT grid shared by every analysis stage.
type Params struct {
	WindowSize int
	HopSize    int
}

func DefaultParams() Params {
	return Params{WindowSize: DefaultWindowSize, HopSize: DefaultHopSize}
}

// WithDefaults fills zero fields with the package defaults.
func (p Params) WithDefaults() Params {
	if p.WindowSize == 0 {
		p.WindowSize = DefaultWindowSize
	}
	if p.HopSize == 0 {
		p.HopSize = DefaultHopSize
	}
	return p
}

func (p Params) Validate() error {
	if p.WindowSize < 2 {
		return fmt.Errorf("%w: window size %d", ErrInvalidParams, p.WindowSize)
	}
	if p.HopSize < 1 || p.HopSize > p.WindowSize {
		return fmt.Errorf("%w: hop size %d must be in [1, %d]", ErrInvalidParams, p.HopSize, p.WindowSize)
	}
	return nil
}

// Analyze computes the STFT of buf. Frame k starts at sample k*HopSize and
// there are ceil(len/HopSize) frames; windows that run past the end of the
// buffer are zero-padded. Each segment is Hann-tapered before the FFT.
func Analyze(buf *audio.SampleBuffer, p Params) (*model.Spectrogram, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	samples := buf.Float64()
	n := len(samples)
	numFrames := (n + p.HopSize - 1) / p.HopSize
	numBins := p.WindowSize/2 + 1

	spec := &model.Spectrogram{
		SampleRate: buf.SampleRate(),
		WindowSize: p.WindowSize,
		HopSize:    p.HopSize,
		Frames:     make([]model.SpectralFrame, numFrames),
	}

	taper := window.Hann(p.WindowSize)
	segment := make([]float64, p.WindowSize)

	for k := 0; k < numFrames; k++ {
		start := k * p.HopSize
		for i := range segment {
			if idx := start + i; idx < n {
				segment[i] = samples[idx] * taper[i]
			} else {
				segment[i] = 0
			}
		}

		coeffs := fft.FFTReal(segment)
		frame := model.SpectralFrame{
			StartSample: start,
			Magnitude:   make([]float64, numBins),
			Phase:       make([]float64, numBins),
		}
		for b := 0; b < numBins; b++ {
			frame.Magnitude[b] = cmplx.Abs(coeffs[b])
			frame.Phase[b] = cmplx.Phase(coeffs[b])
		}
		spec.Frames[k] = frame
	}

	return spec, nil
}

// PeakMagnitude returns the largest magnitude over every frame and bin.
func PeakMagnitude(spec *model.Spectrogram) float64 {
	var peak float64
	for _, f := range spec.Frames {
		if len(f.Magnitude) == 0 {
			continue
		}
		if m := floats.Max(f.Magnitude); m > peak {
			peak = m
		}
	}
	return peak
}

// ToDecibels converts magnitudes to dB relative to the spectrogram's global
// peak (so the peak is 0 dB) and floors everything at -TopDB. A silent
// spectrogram comes back uniformly at -TopDB.
func ToDecibels(spec *model.Spectrogram) [][]float64 {
	out := make([][]float64, len(spec.Frames))
	peak := PeakMagnitude(spec)

	for k, f := range spec.Frames {
		row := make([]float64, len(f.Magnitude))
		for b, m := range f.Magnitude {
			if peak == 0 {
				row[b] = -TopDB
				continue
			}
			db := 20*math.Log10(math.Max(amin, m)) - 20*math.Log10(math.Max(amin, peak))
			row[b] = math.Max(db, -TopDB)
		}
		out[k] = row
	}
	return out
}
