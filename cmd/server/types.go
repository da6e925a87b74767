package main

import (
	"fmt"
	"time"

	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/internal/render"
	"github.com/himanishpuri/AudioScope/pkg/audioscope"
)

// Upload and render limits
const (
	// MaxUploadBytes bounds a multipart audio upload (100MB)
	MaxUploadBytes = 100 << 20

	// MaxRenderWidth and MaxRenderHeight bound a rendered PNG
	MaxRenderWidth  = 4096
	MaxRenderHeight = 2048

	// DefaultHistoryLimit is used when GET /api/history has no limit
	DefaultHistoryLimit = 50
)

// RenderRequest holds the query parameters of POST /api/render
type RenderRequest struct {
	View   overlay.ViewKind
	At     float64
	Width  int
	Height int
}

// Validate checks if the request is valid
func (r *RenderRequest) Validate() error {
	if r.Width <= 0 || r.Width > MaxRenderWidth {
		return fmt.Errorf("width must be in 1..%d, got %d", MaxRenderWidth, r.Width)
	}
	if r.Height <= 0 || r.Height > MaxRenderHeight {
		return fmt.Errorf("height must be in 1..%d, got %d", MaxRenderHeight, r.Height)
	}
	return nil
}

func defaultRenderRequest() RenderRequest {
	return RenderRequest{
		View:   overlay.Spectrogram,
		At:     -1,
		Width:  render.DefaultWidth,
		Height: render.DefaultHeight,
	}
}

// PitchPointDTO is one frame of the pitch track in API responses
type PitchPointDTO struct {
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency_hz"`
	Voiced    bool    `json:"voiced"`
}

// ReportDTO is the response for POST /api/analyze
type ReportDTO struct {
	ID              string          `json:"id,omitempty"`
	Filename        string          `json:"filename"`
	DurationSeconds float64         `json:"duration_seconds"`
	SampleRate      int             `json:"sample_rate"`
	Frames          int             `json:"frames"`
	BPM             float64         `json:"bpm"`
	TempoFallback   bool            `json:"tempo_fallback"`
	Key             string          `json:"key"`
	Pitch           []PitchPointDTO `json:"pitch,omitempty"`
}

func toReportDTO(filename string, r *audioscope.Report, withPitch bool) ReportDTO {
	dto := ReportDTO{
		ID:              r.ID,
		Filename:        filename,
		DurationSeconds: r.Duration.Seconds(),
		SampleRate:      r.SampleRate,
		Frames:          r.Frames,
		BPM:             r.BPM,
		TempoFallback:   r.Fallback,
		Key:             r.Key,
	}
	if withPitch {
		dto.Pitch = make([]PitchPointDTO, len(r.Pitch))
		for i, p := range r.Pitch {
			dto.Pitch[i] = PitchPointDTO{Time: p.TimeSeconds, Frequency: p.FrequencyHz, Voiced: p.Voiced}
		}
	}
	return dto
}

// AnalysisDTO represents a history entry in API responses
type AnalysisDTO struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	DurationMs    int       `json:"duration_ms"`
	SampleRate    int       `json:"sample_rate"`
	BPM           float64   `json:"bpm"`
	TempoFallback bool      `json:"tempo_fallback"`
	Key           string    `json:"key"`
	Frames        int       `json:"frames"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAnalysisDTO(a audioscope.Analysis) AnalysisDTO {
	return AnalysisDTO{
		ID:            a.ID,
		Path:          a.Path,
		DurationMs:    a.DurationMs,
		SampleRate:    a.SampleRate,
		BPM:           a.BPM,
		TempoFallback: a.TempoFallback,
		Key:           a.Key,
		Frames:        a.Frames,
		CreatedAt:     a.CreatedAt,
	}
}

// HistoryResponse is the response for GET /api/history
type HistoryResponse struct {
	Analyses []AnalysisDTO `json:"analyses"`
	Count    int           `json:"count"`
}

// DeleteAnalysisResponse is the response for DELETE /api/history/{id}
type DeleteAnalysisResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and configuration
type MetricsResponse struct {
	Status        string `json:"status"`
	DatabasePath  string `json:"database_path"`
	AnalysisCount int    `json:"analysis_count"`
	WindowSize    int    `json:"window_size"`
	HopSize       int    `json:"hop_size"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
