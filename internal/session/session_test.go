package session

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/AudioScope/internal/analysis"
	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

const testRate = 22050

func toneBuffer(t *testing.T, hz, seconds float64) *audio.SampleBuffer {
	t.Helper()
	samples := make([]float32, int(seconds*testRate))
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*hz*float64(i)/testRate))
	}
	buf, err := audio.NewSampleBuffer(samples, testRate)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func writeTone(t *testing.T, dir, name string, hz float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := audio.WriteWav(path, toneBuffer(t, hz, 1)); err != nil {
		t.Fatalf("WriteWav: %v", err)
	}
	return path
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(Options{Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRejectsBadParams(t *testing.T) {
	_, err := New(Options{Params: analysis.Params{WindowSize: 256, HopSize: 1024}, Logger: logger.Discard()})
	if !errors.Is(err, analysis.ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func TestEmptySession(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.Buffer(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Buffer: expected ErrNoAudio, got %v", err)
	}
	if _, err := s.Spectrogram(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Spectrogram: expected ErrNoAudio, got %v", err)
	}
	if _, err := s.Tempo(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Tempo: expected ErrNoAudio, got %v", err)
	}
	if _, err := s.Player(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Player: expected ErrNoAudio, got %v", err)
	}
	if s.Generation() != 0 {
		t.Errorf("Expected generation 0, got %d", s.Generation())
	}
}

func TestLoadComputesFeatures(t *testing.T) {
	s := newTestSession(t)
	path := writeTone(t, t.TempDir(), "a440.wav", 440)

	if err := s.Load(context.Background(), path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Path() != path || s.Generation() == 0 {
		t.Errorf("Unexpected session identity %q / %d", s.Path(), s.Generation())
	}

	spec, err := s.Spectrogram()
	if err != nil {
		t.Fatal(err)
	}
	track, err := s.PitchTrack()
	if err != nil {
		t.Fatal(err)
	}
	if len(track) != len(spec.Frames) {
		t.Errorf("Pitch track has %d points for %d frames", len(track), len(spec.Frames))
	}
	key, err := s.Key()
	if err != nil {
		t.Fatal(err)
	}
	if key.String() != "A major" {
		t.Errorf("Expected A major, got %s", key)
	}
	tempo, err := s.Tempo()
	if err != nil {
		t.Fatal(err)
	}
	if tempo.BPM <= 0 || math.IsNaN(tempo.BPM) {
		t.Errorf("Invalid tempo %+v", tempo)
	}

	again, _ := s.Spectrogram()
	if again != spec {
		t.Error("Spectrogram should be cached for the generation")
	}

	player, err := s.Player()
	if err != nil {
		t.Fatal(err)
	}
	if st := player.State(); st.Status != playback.Stopped || st.OffsetSeconds != 0 {
		t.Errorf("New player should start Stopped at 0, got %+v", st)
	}
}

func TestDecodeFailureKeepsPrevious(t *testing.T) {
	s := newTestSession(t)
	dir := t.TempDir()
	good := writeTone(t, dir, "good.wav", 440)
	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Load(context.Background(), good); err != nil {
		t.Fatal(err)
	}
	gen := s.Generation()
	buf, _ := s.Buffer()

	if err := s.Load(context.Background(), bad); err == nil {
		t.Fatal("Expected decode error")
	}
	if s.Generation() != gen || s.Path() != good {
		t.Errorf("Failed load replaced the session: gen %d path %s", s.Generation(), s.Path())
	}
	if cur, _ := s.Buffer(); cur != buf {
		t.Error("Buffer changed after failed load")
	}
}

func TestReloadInvalidatesFeatures(t *testing.T) {
	s := newTestSession(t)

	if err := s.LoadBuffer("a", toneBuffer(t, 440, 1)); err != nil {
		t.Fatal(err)
	}
	oldSpec, _ := s.Spectrogram()
	oldKey, _ := s.Key()
	oldPlayer, _ := s.Player()
	if err := oldPlayer.Play(); err != nil {
		t.Fatal(err)
	}
	old := s.cur.Load()

	if err := s.LoadBuffer("g", toneBuffer(t, 392, 1)); err != nil {
		t.Fatal(err)
	}

	newSpec, _ := s.Spectrogram()
	newKey, _ := s.Key()
	if newSpec == oldSpec {
		t.Error("Spectrogram was not recomputed after reload")
	}
	if oldKey.String() != "A major" || newKey.String() != "G major" {
		t.Errorf("Keys before/after reload: %s / %s", oldKey, newKey)
	}

	if oldPlayer.Status() != playback.Stopped {
		t.Errorf("Old player should be stopped, got %v", oldPlayer.Status())
	}
	if err := oldPlayer.Play(); !errors.Is(err, playback.ErrClosed) {
		t.Errorf("Old player should be closed, got %v", err)
	}

	// A computation on the replaced generation never surfaces.
	if _, err := s.pitchFor(old); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Expected ErrSuperseded for stale pitch, got %v", err)
	}
	if _, err := s.tempoFor(old); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Expected ErrSuperseded for stale tempo, got %v", err)
	}
}

func TestLaterLoadWins(t *testing.T) {
	s := newTestSession(t)

	release := make(chan struct{})
	started := make(chan struct{})
	s.decode = func(ctx context.Context, path string, _ audio.DecodeOptions) (*audio.SampleBuffer, error) {
		if path == "slow" {
			close(started)
			<-release
			return toneBuffer(t, 440, 0.5), nil
		}
		return toneBuffer(t, 392, 0.5), nil
	}

	slowErr := make(chan error, 1)
	go func() { slowErr <- s.Load(context.Background(), "slow") }()
	<-started

	if !s.Busy() {
		t.Error("Session should report busy while decoding")
	}
	if err := s.Load(context.Background(), "fast"); err != nil {
		t.Fatalf("Later load failed: %v", err)
	}
	close(release)

	if err := <-slowErr; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Earlier load should be superseded, got %v", err)
	}
	if s.Path() != "fast" {
		t.Errorf("Expected the later load to be current, got %q", s.Path())
	}
	if key, _ := s.Key(); key.String() != "G major" {
		t.Errorf("Features must come from the later load, got %s", key)
	}
}

func TestEarlierLoadFinishingFirstIsReplaced(t *testing.T) {
	s := newTestSession(t)
	if err := s.LoadBuffer("first", toneBuffer(t, 440, 0.5)); err != nil {
		t.Fatal(err)
	}
	first := s.Generation()
	if err := s.LoadBuffer("second", toneBuffer(t, 392, 0.5)); err != nil {
		t.Fatal(err)
	}
	if s.Generation() <= first || s.Path() != "second" {
		t.Errorf("Expected second load to replace the first, gen %d path %s", s.Generation(), s.Path())
	}
}

func TestConcurrentFeatureRequests(t *testing.T) {
	s := newTestSession(t)
	if err := s.LoadBuffer("tone", toneBuffer(t, 440, 1)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]float64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tempo, err := s.Tempo()
			if err != nil {
				t.Errorf("Tempo: %v", err)
				return
			}
			results[i] = tempo.BPM
		}(i)
	}
	wg.Wait()
	for i := range results {
		if results[i] != results[0] {
			t.Fatalf("Concurrent requests disagree: %v", results)
		}
	}
}

func TestOutputFactoryFailure(t *testing.T) {
	s, err := New(Options{
		Logger:    logger.Discard(),
		NewOutput: func(int) (playback.Output, error) { return nil, errors.New("no device") },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.LoadBuffer("x", toneBuffer(t, 440, 0.1)); err == nil {
		t.Error("Expected load to fail when no output can be created")
	}
	if s.Generation() != 0 {
		t.Error("Failed install should not change the generation")
	}
}

func TestPlaybackCompletionCallback(t *testing.T) {
	done := make(chan struct{}, 1)
	s, err := New(Options{
		Logger:             logger.Discard(),
		OnPlaybackComplete: func() { done <- struct{}{} },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.LoadBuffer("short", toneBuffer(t, 440, 0.1)); err != nil {
		t.Fatal(err)
	}
	player, _ := s.Player()
	if err := player.Play(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Playback never completed")
	}
}

func TestCloseReleasesPlayer(t *testing.T) {
	s, err := New(Options{Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.LoadBuffer("tone", toneBuffer(t, 440, 1)); err != nil {
		t.Fatal(err)
	}
	player, _ := s.Player()
	player.Play()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := player.Play(); !errors.Is(err, playback.ErrClosed) {
		t.Errorf("Player should be closed with the session, got %v", err)
	}
	if _, err := s.Buffer(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Expected ErrNoAudio after Close, got %v", err)
	}
	if err := s.LoadBuffer("late", toneBuffer(t, 440, 0.1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
