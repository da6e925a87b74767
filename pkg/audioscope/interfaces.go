package audioscope

import (
	"context"
	"image/draw"
	"time"

	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/internal/session"
)

type Service interface {
	Analyze(ctx context.Context, audioPath string) (*Report, error)
	RenderView(ctx context.Context, audioPath string, view overlay.ViewKind, at float64, width, height int) (draw.Image, error)
	ExportView(ctx context.Context, audioPath string, view overlay.ViewKind, at float64, outPath string) error
	History(limit int) ([]Analysis, error)
	GetAnalysis(id string) (*Analysis, error)
	DeleteAnalysis(id string) error
	NewSession() (*session.Session, error)
	NewOverlay(sess *session.Session, surface overlay.Surface, view overlay.ViewKind, width int) (*overlay.Overlay, error)
	RefreshInterval() time.Duration
	Close() error
}

type Storage interface {
	SaveAnalysis(a Analysis) (string, error)
	ListAnalyses(limit int) ([]Analysis, error)
	GetAnalysis(id string) (*Analysis, error)
	DeleteAnalysis(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
