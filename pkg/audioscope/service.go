package audioscope

import (
	"context"
	"fmt"
	"image/draw"
	"time"

	"github.com/himanishpuri/AudioScope/internal/analysis"
	"github.com/himanishpuri/AudioScope/internal/audio"
	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/internal/render"
	"github.com/himanishpuri/AudioScope/internal/session"
	"github.com/himanishpuri/AudioScope/internal/storage"
	"github.com/himanishpuri/AudioScope/pkg/logger"
)

// ErrNotFound is returned by GetAnalysis and DeleteAnalysis for unknown ids.
var ErrNotFound = storage.ErrNotFound

// scopeService is the default implementation of the Service interface.
type scopeService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	params := analysis.Params{WindowSize: cfg.WindowSize, HopSize: cfg.HopSize}
	if err := params.WithDefaults().Validate(); err != nil {
		return nil, err
	}

	// Create or use provided storage
	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &scopeService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// NewSession creates an empty session configured like the service.
func (s *scopeService) NewSession() (*session.Session, error) {
	return session.New(session.Options{
		Params:    analysis.Params{WindowSize: s.config.WindowSize, HopSize: s.config.HopSize},
		Decode:    audio.DecodeOptions{TempDir: s.config.TempDir},
		NewOutput: s.config.OutputFactory,
		Logger:    s.componentLogger(),
	})
}

func (s *scopeService) componentLogger() *logger.Logger {
	if l, ok := s.log.(*logger.Logger); ok {
		return l
	}
	return logger.GetLogger()
}

func (s *scopeService) RefreshInterval() time.Duration { return s.config.RefreshInterval }

// Analyze decodes a file, extracts every feature and records the result in
// the history.
func (s *scopeService) Analyze(ctx context.Context, audioPath string) (*Report, error) {
	s.log.Infof("Analyzing: %s", audioPath)

	sess, err := s.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.Load(ctx, audioPath); err != nil {
		return nil, err
	}

	report, err := buildReport(sess)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Tempo %.2f BPM, key %s, %d frames", report.BPM, report.Key, report.Frames)

	id, err := s.storage.SaveAnalysis(Analysis{
		Path:          audioPath,
		DurationMs:    int(report.Duration / time.Millisecond),
		SampleRate:    report.SampleRate,
		BPM:           report.BPM,
		TempoFallback: report.Fallback,
		Key:           report.Key,
		Frames:        report.Frames,
	})
	if err != nil {
		// The report is still useful without a history entry.
		s.log.Warnf("Failed to record analysis of %s: %v", audioPath, err)
	}
	report.ID = id
	return report, nil
}

func buildReport(sess *session.Session) (*Report, error) {
	buf, err := sess.Buffer()
	if err != nil {
		return nil, err
	}
	spec, err := sess.Spectrogram()
	if err != nil {
		return nil, fmt.Errorf("spectrogram generation failed: %w", err)
	}
	track, err := sess.PitchTrack()
	if err != nil {
		return nil, fmt.Errorf("pitch tracking failed: %w", err)
	}
	tempo, err := sess.Tempo()
	if err != nil {
		return nil, fmt.Errorf("tempo estimation failed: %w", err)
	}
	key, err := sess.Key()
	if err != nil {
		return nil, fmt.Errorf("key detection failed: %w", err)
	}

	pitch := make([]PitchPoint, len(track))
	for i, p := range track {
		pitch[i] = PitchPoint{TimeSeconds: p.TimeSeconds, FrequencyHz: p.FrequencyHz, Voiced: p.Voiced}
	}

	return &Report{
		Path:       sess.Path(),
		Duration:   buf.Duration(),
		SampleRate: buf.SampleRate(),
		Frames:     len(spec.Frames),
		BPM:        tempo.BPM,
		Fallback:   tempo.Fallback,
		Key:        key.String(),
		Pitch:      pitch,
	}, nil
}

// RenderData collects what render needs to draw view for the session's
// current recording. Features other views need are not computed.
func RenderData(sess *session.Session, view overlay.ViewKind, at float64) (render.Data, error) {
	buf, err := sess.Buffer()
	if err != nil {
		return render.Data{}, err
	}
	d := render.Data{
		Samples:    buf.Samples(),
		SampleRate: buf.SampleRate(),
		Playhead:   at,
	}
	switch view {
	case overlay.Spectrogram:
		if d.Spectrogram, err = sess.Spectrogram(); err != nil {
			return render.Data{}, err
		}
	case overlay.Pitch:
		if d.Pitch, err = sess.PitchTrack(); err != nil {
			return render.Data{}, err
		}
	}
	return d, nil
}

// RenderView draws one view of a file with the playhead at `at` seconds
// (negative hides it).
func (s *scopeService) RenderView(ctx context.Context, audioPath string, view overlay.ViewKind, at float64, width, height int) (draw.Image, error) {
	sess, err := s.NewSession()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.Load(ctx, audioPath); err != nil {
		return nil, err
	}
	d, err := RenderData(sess, view, at)
	if err != nil {
		return nil, err
	}
	return render.Render(width, height, view, d)
}

// ExportView renders one view to a PNG file at the default size.
func (s *scopeService) ExportView(ctx context.Context, audioPath string, view overlay.ViewKind, at float64, outPath string) error {
	sess, err := s.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Load(ctx, audioPath); err != nil {
		return err
	}
	d, err := RenderData(sess, view, at)
	if err != nil {
		return err
	}
	if err := render.SavePNG(outPath, render.DefaultWidth, render.DefaultHeight, view, d); err != nil {
		return err
	}
	s.log.Infof("Saved %s view to %s", view, outPath)
	return nil
}

// NewOverlay wires a playhead overlay between the session's player and a
// surface showing view at the given width.
func (s *scopeService) NewOverlay(sess *session.Session, surface overlay.Surface, view overlay.ViewKind, width int) (*overlay.Overlay, error) {
	player, err := sess.Player()
	if err != nil {
		return nil, err
	}
	d, err := RenderData(sess, view, -1)
	if err != nil {
		return nil, err
	}

	ov := overlay.New(player, surface, s.config.RefreshInterval)
	ov.SetLogger(s.componentLogger())
	ov.SetView(overlay.View{Kind: view, Axis: render.Axis(width, d), Pitch: d.Pitch})
	return ov, nil
}

// History returns the most recent analyses, newest first.
func (s *scopeService) History(limit int) ([]Analysis, error) {
	return s.storage.ListAnalyses(limit)
}

func (s *scopeService) GetAnalysis(id string) (*Analysis, error) {
	return s.storage.GetAnalysis(id)
}

func (s *scopeService) DeleteAnalysis(id string) error {
	return s.storage.DeleteAnalysis(id)
}

// Close releases all resources held by the service.
func (s *scopeService) Close() error {
	return s.storage.Close()
}
