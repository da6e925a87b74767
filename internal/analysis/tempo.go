package analysis

import (
	"math"

	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// FallbackBPM is reported whenever the onset curve has no usable
	// periodicity: silent or constant input, or a buffer too short to hold
	// a single lag in the search range.
	FallbackBPM = 120.0

	MinBPM = 40.0
	MaxBPM = 240.0

	// Scores are weighted by a log-normal prior centered here with a
	// one-octave spread, which settles octave ambiguities (60 vs 120).
	priorCenterBPM = 120.0
	priorOctaves   = 1.0

	flatVariance = 1e-18
)

// EstimateTempo runs the STFT over buf on the p grid and derives a BPM.
func EstimateTempo(buf *audio.SampleBuffer, p Params) model.TempoEstimate {
	spec, err := Analyze(buf, p)
	if err != nil {
		return fallbackTempo()
	}
	return TempoFromSpectrogram(spec)
}

// OnsetStrength is the rectified spectral flux: for each frame, the summed
// increase in bin magnitude over the previous frame. Frame 0 is 0.
func OnsetStrength(spec *model.Spectrogram) []float64 {
	onset := make([]float64, len(spec.Frames))
	for k := 1; k < len(spec.Frames); k++ {
		prev := spec.Frames[k-1].Magnitude
		cur := spec.Frames[k].Magnitude
		var flux float64
		for b := 0; b < len(cur) && b < len(prev); b++ {
			if d := cur[b] - prev[b]; d > 0 {
				flux += d
			}
		}
		onset[k] = flux
	}
	return onset
}

// TempoFromSpectrogram autocorrelates the onset curve over lags equivalent to
// MinBPM..MaxBPM and converts the best lag to beats per minute.
func TempoFromSpectrogram(spec *model.Spectrogram) model.TempoEstimate {
	onset := OnsetStrength(spec)
	n := len(onset)
	if n < 3 || spec.HopSize <= 0 || spec.SampleRate <= 0 {
		return fallbackTempo()
	}

	frameRate := float64(spec.SampleRate) / float64(spec.HopSize)
	minLag := int(math.Floor(60 * frameRate / MaxBPM))
	if minLag < 1 {
		minLag = 1
	}
	maxLag := int(math.Ceil(60 * frameRate / MinBPM))
	if maxLag > n-1 {
		maxLag = n - 1
	}
	if maxLag < minLag {
		return fallbackTempo()
	}

	if floats.Max(onset) <= 0 || stat.Variance(onset, nil) < flatVariance {
		return fallbackTempo()
	}

	centered := make([]float64, n)
	copy(centered, onset)
	floats.AddConst(-stat.Mean(onset, nil), centered)

	acf := make([]float64, maxLag+2)
	for lag := minLag; lag <= maxLag; lag++ {
		acf[lag] = floats.Dot(centered[:n-lag], centered[lag:]) / float64(n-lag)
	}

	bestLag := -1
	bestScore := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		score := acf[lag] * tempoPrior(60*frameRate/float64(lag))
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}
	if bestLag < 0 {
		return fallbackTempo()
	}

	lag := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		lag += parabolicOffset(acf[bestLag-1], acf[bestLag], acf[bestLag+1])
	}

	bpm := 60 * frameRate / lag
	bpm = math.Max(MinBPM, math.Min(MaxBPM, bpm))
	return model.TempoEstimate{BPM: math.Round(bpm*100) / 100}
}

func tempoPrior(bpm float64) float64 {
	octaves := math.Log2(bpm/priorCenterBPM) / priorOctaves
	return math.Exp(-0.5 * octaves * octaves)
}

// parabolicOffset returns the sub-sample offset of the vertex of the
// parabola through three equally spaced points, limited to half a step.
func parabolicOffset(left, mid, right float64) float64 {
	denom := left - 2*mid + right
	if denom >= 0 {
		return 0
	}
	delta := 0.5 * (left - right) / denom
	return math.Max(-0.5, math.Min(0.5, delta))
}

func fallbackTempo() model.TempoEstimate {
	return model.TempoEstimate{BPM: FallbackBPM, Fallback: true}
}
