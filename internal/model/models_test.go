package model

import "testing"

func TestSpectrogramGeometry(t *testing.T) {
	s := &Spectrogram{SampleRate: 44100, WindowSize: 2048, HopSize: 512}

	if s.NumBins() != 1025 {
		t.Errorf("Expected 1025 bins, got %d", s.NumBins())
	}
	if got, want := s.FrameTime(10), 10*512.0/44100.0; got != want {
		t.Errorf("FrameTime(10) = %v, want %v", got, want)
	}
	if got := s.BinFrequency(1024); got != 22050 {
		t.Errorf("Nyquist bin frequency = %v, want 22050", got)
	}
}

func TestKeyEstimateString(t *testing.T) {
	k := KeyEstimate{PitchClass: 9, Mode: ModeMajor}
	if k.String() != "A major" {
		t.Errorf("Expected 'A major', got %q", k.String())
	}
	if PitchClass(13).String() != "PitchClass(13)" {
		t.Errorf("Unexpected out-of-range name %q", PitchClass(13).String())
	}
}
