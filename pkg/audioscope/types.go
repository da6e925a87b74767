package audioscope

import "time"

// Report is the full analysis of one file.
type Report struct {
	ID         string        // History record ID (UUID)
	Path       string        // Analyzed file
	Duration   time.Duration // Length of the decoded audio
	SampleRate int           // Samples per second
	Frames     int           // Number of STFT frames
	BPM        float64       // Estimated tempo
	Fallback   bool          // True when BPM is the fallback constant
	Key        string        // Key root and mode, e.g. "A major"
	Pitch      []PitchPoint  // One entry per STFT frame
}

// PitchPoint is one frame of the pitch contour. FrequencyHz is 0 when unvoiced.
type PitchPoint struct {
	TimeSeconds float64
	FrequencyHz float64
	Voiced      bool
}

// Analysis is a stored history entry.
type Analysis struct {
	ID            string
	Path          string
	DurationMs    int
	SampleRate    int
	BPM           float64
	TempoFallback bool
	Key           string
	Frames        int
	CreatedAt     time.Time
}
