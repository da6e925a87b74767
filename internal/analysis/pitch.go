package analysis

import (
	"sort"

	"github.com/himanishpuri/AudioScope/internal/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Track estimates one pitch per spectral frame. Bins whose magnitude is
// strictly above the frame median are averaged by frequency, weighted by
// magnitude. Silent frames and frames where no bin clears the median are
// unvoiced with frequency 0.
func Track(spec *model.Spectrogram) model.PitchTrack {
	track := make(model.PitchTrack, len(spec.Frames))
	sorted := make([]float64, spec.NumBins())

	for k, f := range spec.Frames {
		track[k] = model.PitchPoint{TimeSeconds: spec.FrameTime(k)}
		if hz, ok := framePitch(spec, f.Magnitude, sorted); ok {
			track[k].FrequencyHz = hz
			track[k].Voiced = true
		}
	}
	return track
}

func framePitch(spec *model.Spectrogram, mag, scratch []float64) (float64, bool) {
	if len(mag) == 0 || floats.Max(mag) == 0 {
		return 0, false
	}

	if cap(scratch) < len(mag) {
		scratch = make([]float64, len(mag))
	}
	scratch = scratch[:len(mag)]
	copy(scratch, mag)
	sort.Float64s(scratch)
	median := stat.Quantile(0.5, stat.Empirical, scratch, nil)

	var weight, weighted float64
	for b, m := range mag {
		if m > median {
			weight += m
			weighted += m * spec.BinFrequency(b)
		}
	}
	if weight == 0 || weighted == 0 {
		return 0, false
	}
	return weighted / weight, true
}
