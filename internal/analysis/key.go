package analysis

import (
	"math"

	"github.com/himanishpuri/AudioScope/internal/model"
	"gonum.org/v1/gonum/floats"
)

const (
	ReferenceA4Hz = 440.0
	// Bins below A0 map to pitch classes too coarsely to be useful.
	MinChromaHz = 27.5
)

// PitchClassOf maps a frequency to the nearest equal-tempered pitch class,
// anchored at A4 = 440 Hz.
func PitchClassOf(hz float64) model.PitchClass {
	midi := 69 + 12*math.Log2(hz/ReferenceA4Hz)
	pc := int(math.Round(midi)) % 12
	if pc < 0 {
		pc += 12
	}
	return model.PitchClass(pc)
}

// Chroma sums squared bin magnitudes per pitch class over all frames.
func Chroma(spec *model.Spectrogram) [12]float64 {
	var chroma [12]float64
	classes := binClasses(spec)

	for _, f := range spec.Frames {
		for b, m := range f.Magnitude {
			if b >= len(classes) || classes[b] < 0 {
				continue
			}
			chroma[classes[b]] += m * m
		}
	}
	return chroma
}

// binClasses precomputes the pitch class of every bin, -1 for bins below
// MinChromaHz (including DC).
func binClasses(spec *model.Spectrogram) []int {
	classes := make([]int, spec.NumBins())
	for b := range classes {
		hz := spec.BinFrequency(b)
		if hz < MinChromaHz {
			classes[b] = -1
			continue
		}
		classes[b] = int(PitchClassOf(hz))
	}
	return classes
}

// DetectKey reports the pitch class with the most chroma energy as a major
// key root. Silent input yields C major (the first class wins ties).
func DetectKey(spec *model.Spectrogram) model.KeyEstimate {
	chroma := Chroma(spec)
	return model.KeyEstimate{
		PitchClass: model.PitchClass(floats.MaxIdx(chroma[:])),
		Mode:       model.ModeMajor,
	}
}
