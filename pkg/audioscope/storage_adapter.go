package audioscope

import (
	"github.com/himanishpuri/AudioScope/internal/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveAnalysis(a Analysis) (string, error) {
	return s.db.SaveAnalysis(&storage.AnalysisRecord{
		ID:            a.ID,
		Path:          a.Path,
		DurationMs:    a.DurationMs,
		SampleRate:    a.SampleRate,
		BPM:           a.BPM,
		TempoFallback: a.TempoFallback,
		Key:           a.Key,
		Frames:        a.Frames,
		CreatedAt:     a.CreatedAt,
	})
}

func (s *storageAdapter) ListAnalyses(limit int) ([]Analysis, error) {
	rows, err := s.db.ListAnalyses(limit)
	if err != nil {
		return nil, err
	}
	out := make([]Analysis, len(rows))
	for i, r := range rows {
		out[i] = fromRecord(r)
	}
	return out, nil
}

func (s *storageAdapter) GetAnalysis(id string) (*Analysis, error) {
	rec, err := s.db.GetAnalysis(id)
	if err != nil {
		return nil, err
	}
	a := fromRecord(*rec)
	return &a, nil
}

func (s *storageAdapter) DeleteAnalysis(id string) error {
	return s.db.DeleteAnalysis(id)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func fromRecord(r storage.AnalysisRecord) Analysis {
	return Analysis{
		ID:            r.ID,
		Path:          r.Path,
		DurationMs:    r.DurationMs,
		SampleRate:    r.SampleRate,
		BPM:           r.BPM,
		TempoFallback: r.TempoFallback,
		Key:           r.Key,
		Frames:        r.Frames,
		CreatedAt:     r.CreatedAt,
	}
}
