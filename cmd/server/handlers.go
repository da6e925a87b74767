package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/himanishpuri/AudioScope/internal/overlay"
	"github.com/himanishpuri/AudioScope/pkg/audioscope"
	"github.com/himanishpuri/AudioScope/pkg/logger"
	"github.com/himanishpuri/AudioScope/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service audioscope.Service
	config  *ServerConfig
	log     audioscope.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	WindowSize     int
	HopSize        int
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service audioscope.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("server"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// saveUpload copies the "audio" form file into the temp directory. The
// original file name is kept as a suffix so the decoder can pick a format
// from the extension. The caller removes the returned path.
func (s *Server) saveUpload(r *http.Request, prefix string) (path, filename string, status int, err error) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return "", "", http.StatusBadRequest, fmt.Errorf("failed to parse form data: %w", err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", "", http.StatusBadRequest, errors.New("audio file is required")
	}
	defer file.Close()

	filename = filepath.Base(header.Filename)
	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), filename))
	out, err := os.Create(tempFile)
	if err != nil {
		return "", "", http.StatusInternalServerError, fmt.Errorf("failed to process upload: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		utils.DeleteFile(tempFile)
		return "", "", http.StatusInternalServerError, fmt.Errorf("failed to save uploaded file: %w", err)
	}
	return tempFile, filename, http.StatusOK, nil
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "AudioScope API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":         "GET /health",
			"metrics":        "GET /api/health/metrics",
			"analyze":        "POST /api/analyze",
			"render":         "POST /api/render?view={waveform|spectrogram|pitch}&at={seconds}",
			"history":        "GET /api/history",
			"getAnalysis":    "GET /api/history/{id}",
			"deleteAnalysis": "DELETE /api/history/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.History(0)
	if err != nil {
		s.log.Errorf("Failed to count analyses: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:        "healthy",
		DatabasePath:  s.config.DBPath,
		AnalysisCount: len(entries),
		WindowSize:    s.config.WindowSize,
		HopSize:       s.config.HopSize,
	})
}

// handleAnalyze handles POST /api/analyze (multipart file upload)
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	tempFile, filename, status, err := s.saveUpload(r, "analyze")
	if err != nil {
		s.log.Errorf("Upload failed: %v", err)
		s.respondError(w, status, err.Error())
		return
	}
	defer utils.DeleteFile(tempFile)

	s.log.Infof("Analyzing uploaded file: %s", filename)
	report, err := s.service.Analyze(ctx, tempFile)
	if err != nil {
		s.log.Errorf("Failed to analyze %s: %v", filename, err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to analyze audio: %v", err))
		return
	}

	withPitch := r.URL.Query().Get("pitch") != "false"
	s.respondJSON(w, http.StatusOK, toReportDTO(filename, report, withPitch))
}

// handleRender handles POST /api/render (multipart file upload, PNG response)
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, err := parseRenderRequest(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	tempFile, filename, status, err := s.saveUpload(r, "render")
	if err != nil {
		s.log.Errorf("Upload failed: %v", err)
		s.respondError(w, status, err.Error())
		return
	}
	defer utils.DeleteFile(tempFile)

	img, err := s.service.RenderView(ctx, tempFile, req.View, req.At, req.Width, req.Height)
	if err != nil {
		s.log.Errorf("Failed to render %s: %v", filename, err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("Failed to render audio: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		s.log.Errorf("Failed to encode PNG: %v", err)
	}
}

func parseRenderRequest(r *http.Request) (RenderRequest, error) {
	req := defaultRenderRequest()
	q := r.URL.Query()

	if v := q.Get("view"); v != "" {
		view, err := overlay.ParseView(v)
		if err != nil {
			return req, err
		}
		req.View = view
	}
	if v := q.Get("at"); v != "" {
		at, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid at: %w", err)
		}
		req.At = at
	}
	if v := q.Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid width: %w", err)
		}
		req.Width = n
	}
	if v := q.Get("height"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid height: %w", err)
		}
		req.Height = n
	}
	return req, req.Validate()
}

// handleListHistory handles GET /api/history
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.service.History(limit)
	if err != nil {
		s.log.Errorf("Failed to list history: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	dtos := make([]AnalysisDTO, len(entries))
	for i, a := range entries {
		dtos[i] = toAnalysisDTO(a)
	}
	s.respondJSON(w, http.StatusOK, HistoryResponse{
		Analyses: dtos,
		Count:    len(dtos),
	})
}

// handleGetAnalysis handles GET /api/history/{id}
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request, id string) {
	a, err := s.service.GetAnalysis(id)
	if err != nil {
		s.notFoundOrError(w, id, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toAnalysisDTO(*a))
}

// handleDeleteAnalysis handles DELETE /api/history/{id}
func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteAnalysis(id); err != nil {
		s.notFoundOrError(w, id, err)
		return
	}

	s.log.Infof("Deleted analysis %s", id)
	s.respondJSON(w, http.StatusOK, DeleteAnalysisResponse{
		Message: "Analysis deleted successfully",
		ID:      id,
	})
}

func (s *Server) notFoundOrError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, audioscope.ErrNotFound) {
		s.log.Warnf("Analysis not found: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Analysis with ID %s not found", id))
		return
	}
	s.log.Errorf("History lookup for %s failed: %v", id, err)
	s.respondError(w, http.StatusInternalServerError, "Failed to access history")
}

// handleHistory routes requests to /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleListHistory(w, r)
}

// handleHistoryEntry routes requests to /api/history/{id}
func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/api/history/"):]
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Analysis ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetAnalysis(w, r, id)
	case http.MethodDelete:
		s.handleDeleteAnalysis(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
