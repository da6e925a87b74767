package model

import "fmt"

// SpectralFrame is one STFT analysis window. Magnitude and Phase hold one
// value per frequency bin, 0..WindowSize/2 inclusive.
type SpectralFrame struct {
	StartSample int
	Magnitude   []float64
	Phase       []float64
}

// Spectrogram is a time-ordered sequence of frames spaced HopSize samples apart.
type Spectrogram struct {
	SampleRate int
	WindowSize int
	HopSize    int
	Frames     []SpectralFrame
}

// NumBins is the number of frequency bins per frame.
func (s *Spectrogram) NumBins() int {
	return s.WindowSize/2 + 1
}

// FrameTime returns the start time in seconds of frame k.
func (s *Spectrogram) FrameTime(k int) float64 {
	return float64(k*s.HopSize) / float64(s.SampleRate)
}

// BinFrequency returns the center frequency in Hz of bin b.
func (s *Spectrogram) BinFrequency(b int) float64 {
	return float64(b) * float64(s.SampleRate) / float64(s.WindowSize)
}

// PitchPoint is the pitch estimate for one spectral frame.
// When Voiced is false FrequencyHz is always 0.
type PitchPoint struct {
	TimeSeconds float64
	FrequencyHz float64
	Voiced      bool
}

type PitchTrack []PitchPoint

type TempoEstimate struct {
	BPM      float64
	Fallback bool // true when the signal gave no usable periodicity
}

// PitchClass is a chromatic pitch class, C = 0 through B = 11.
type PitchClass int

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (p PitchClass) String() string {
	if p < 0 || int(p) >= len(pitchClassNames) {
		return fmt.Sprintf("PitchClass(%d)", int(p))
	}
	return pitchClassNames[p]
}

// KeyEstimate is always labeled major; minor-mode discrimination is not attempted.
type KeyEstimate struct {
	PitchClass PitchClass
	Mode       string
}

func (k KeyEstimate) String() string {
	return k.PitchClass.String() + " " + k.Mode
}

const ModeMajor = "major"
