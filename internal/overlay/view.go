package overlay

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/himanishpuri/AudioScope/internal/model"
)

type ViewKind int

const (
	Waveform ViewKind = iota
	Spectrogram
	Pitch
)

var viewNames = map[ViewKind]string{
	Waveform:    "Waveform",
	Spectrogram: "Spectrogram",
	Pitch:       "Pitch Over Time",
}

func (v ViewKind) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}
	return fmt.Sprintf("ViewKind(%d)", int(v))
}

// ParseView accepts "waveform", "spectrogram" and "pitch" (or the display
// names), case-insensitively.
func ParseView(name string) (ViewKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "waveform", "wave":
		return Waveform, nil
	case "spectrogram", "spec":
		return Spectrogram, nil
	case "pitch", "pitch over time":
		return Pitch, nil
	}
	return 0, fmt.Errorf("unknown view %q", name)
}

// TimeAxis maps seconds onto a horizontal coordinate range
// [Origin, Origin+Width] covering [0, Duration].
type TimeAxis struct {
	Origin   float64
	Width    float64
	Duration float64
}

// X returns the coordinate for t, clamped to the axis.
func (a TimeAxis) X(t float64) float64 {
	if a.Duration <= 0 || math.IsNaN(t) {
		return a.Origin
	}
	frac := math.Max(0, math.Min(1, t/a.Duration))
	return a.Origin + frac*a.Width
}

// Time is the inverse of X. Coordinates outside the axis clamp to its ends.
func (a TimeAxis) Time(x float64) float64 {
	if a.Width <= 0 || math.IsNaN(x) {
		return 0
	}
	frac := math.Max(0, math.Min(1, (x-a.Origin)/a.Width))
	return frac * a.Duration
}

// PitchAt returns the frequency of the track entry nearest in time to t,
// 0 when that entry is unvoiced or the track is empty.
func PitchAt(track model.PitchTrack, t float64) float64 {
	if len(track) == 0 {
		return 0
	}
	i := sort.Search(len(track), func(i int) bool { return track[i].TimeSeconds >= t })
	switch {
	case i == len(track):
		i--
	case i > 0 && t-track[i-1].TimeSeconds <= track[i].TimeSeconds-t:
		i--
	}
	if !track[i].Voiced {
		return 0
	}
	return track[i].FrequencyHz
}
