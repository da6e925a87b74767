package audioscope

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/internal/playback"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

// setupTestService creates a test service with a temporary database
func setupTestService(t *testing.T, opts ...Option) *scopeService {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_service_audioscope.sqlite3")
	opts = append([]Option{WithDBPath(dbPath), WithTempDir(t.TempDir()), WithLogger(logger.Discard())}, opts...)

	svc, err := NewService(opts...)
	if err != nil {
		t.Fatalf("Failed to create test service: %v", err)
	}
	t.Cleanup(func() {
		svc.Close()
	})
	return svc.(*scopeService)
}

// writeTestTone writes a short mono WAV with a sine at hz
func writeTestTone(t *testing.T, hz float64) string {
	t.Helper()
	const sr = 22050
	samples := make([]float32, sr)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*hz*float64(i)/sr))
	}
	buf, err := audio.NewSampleBuffer(samples, sr)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.WriteWav(path, buf); err != nil {
		t.Fatal(err)
	}
	return path
}

type nopSurface struct{}

func (nopSurface) DrawMarker(overlay.ViewKind, float64) {}
func (nopSurface) ShowPitch(float64)                    {}

func TestNewService(t *testing.T) {
	svc := setupTestService(t)

	if svc.storage == nil {
		t.Fatal("Expected non-nil storage")
	}
	if svc.log == nil {
		t.Fatal("Expected non-nil logger")
	}
	if svc.RefreshInterval() != overlay.DefaultInterval {
		t.Errorf("Expected default refresh interval, got %v", svc.RefreshInterval())
	}
}

func TestNewServiceRejectsBadParams(t *testing.T) {
	_, err := NewService(
		WithDBPath(filepath.Join(t.TempDir(), "x.sqlite3")),
		WithWindowSize(512),
		WithHopSize(4096),
	)
	if err == nil {
		t.Fatal("Expected error for hop larger than window")
	}
}

func TestAnalyzeRecordsHistory(t *testing.T) {
	svc := setupTestService(t)
	path := writeTestTone(t, 440)

	report, err := svc.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if report.Key != "A major" {
		t.Errorf("Expected A major, got %s", report.Key)
	}
	if report.Duration != time.Second || report.SampleRate != 22050 {
		t.Errorf("Unexpected duration/rate %v / %d", report.Duration, report.SampleRate)
	}
	if len(report.Pitch) != report.Frames {
		t.Errorf("Expected %d pitch points, got %d", report.Frames, len(report.Pitch))
	}
	if report.ID == "" {
		t.Fatal("Expected a history id")
	}

	history, err := svc.History(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != report.ID || history[0].Key != "A major" {
		t.Fatalf("Unexpected history %+v", history)
	}
	if history[0].DurationMs != 1000 {
		t.Errorf("Expected 1000ms in history, got %d", history[0].DurationMs)
	}

	got, err := svc.GetAnalysis(report.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.BPM != report.BPM {
		t.Errorf("Stored BPM %v, reported %v", got.BPM, report.BPM)
	}

	if err := svc.DeleteAnalysis(report.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetAnalysis(report.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	svc := setupTestService(t)
	if _, err := svc.Analyze(context.Background(), "does-not-exist.wav"); err == nil {
		t.Error("Expected error for missing file")
	}
	history, _ := svc.History(0)
	if len(history) != 0 {
		t.Errorf("Failed analysis should not be recorded, got %d entries", len(history))
	}
}

func TestRenderAndExportView(t *testing.T) {
	svc := setupTestService(t)
	path := writeTestTone(t, 330)

	img, err := svc.RenderView(context.Background(), path, overlay.Spectrogram, 0.5, 200, 80)
	if err != nil {
		t.Fatalf("RenderView failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 80 {
		t.Errorf("Unexpected bounds %v", b)
	}

	out := filepath.Join(t.TempDir(), "pitch.png")
	if err := svc.ExportView(context.Background(), path, overlay.Pitch, -1, out); err != nil {
		t.Fatalf("ExportView failed: %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("Expected a PNG at %s: %v", out, err)
	}
}

func TestNewOverlayTracksPlayer(t *testing.T) {
	svc := setupTestService(t, WithRefreshInterval(20*time.Millisecond))
	sess, err := svc.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	if _, err := svc.NewOverlay(sess, nopSurface{}, overlay.Waveform, 100); err == nil {
		t.Error("Expected error before anything is loaded")
	}

	if err := sess.Load(context.Background(), writeTestTone(t, 440)); err != nil {
		t.Fatal(err)
	}
	ov, err := svc.NewOverlay(sess, nopSurface{}, overlay.Pitch, 101)
	if err != nil {
		t.Fatal(err)
	}
	if ov.Interval() != 20*time.Millisecond {
		t.Errorf("Overlay should use the configured interval, got %v", ov.Interval())
	}
	v, ok := ov.View()
	if !ok || v.Kind != overlay.Pitch || len(v.Pitch) == 0 {
		t.Fatalf("Unexpected overlay view %+v", v)
	}

	if err := ov.Click(50); err != nil {
		t.Fatal(err)
	}
	player, _ := sess.Player()
	if st := player.State(); st.Status != playback.Stopped || math.Abs(st.OffsetSeconds-0.5) > 1e-3 {
		t.Errorf("Click should seek the stopped player to 0.5s, got %+v", st)
	}
}

type memStorage struct {
	saved []Analysis
}

func (m *memStorage) SaveAnalysis(a Analysis) (string, error) {
	a.ID = "mem-1"
	m.saved = append(m.saved, a)
	return a.ID, nil
}
func (m *memStorage) ListAnalyses(int) ([]Analysis, error) { return m.saved, nil }
func (m *memStorage) GetAnalysis(string) (*Analysis, error) { return nil, ErrNotFound }
func (m *memStorage) DeleteAnalysis(string) error           { return nil }
func (m *memStorage) Close() error                          { return nil }

func TestWithStorage(t *testing.T) {
	mem := &memStorage{}
	svc, err := NewService(WithStorage(mem), WithLogger(logger.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	report, err := svc.Analyze(context.Background(), writeTestTone(t, 440))
	if err != nil {
		t.Fatal(err)
	}
	if report.ID != "mem-1" || len(mem.saved) != 1 {
		t.Errorf("Expected analysis in the injected storage, got id %q and %d rows", report.ID, len(mem.saved))
	}
}
