package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	customlogger "github.com/himanishpuri/AudioScope/pkg/logger"
	"github.com/himanishpuri/AudioScope/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "audioscope.sqlite3"
const errDBClientNil = "db client is nil"

// ErrNotFound is returned when no analysis matches the requested id.
var ErrNotFound = gorm.ErrRecordNotFound

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// AnalysisRecord is one row of the analysis history: the scalar features of
// a file at the time it was analyzed.
type AnalysisRecord struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Path          string    `gorm:"index:idx_analysis_path" json:"path"`
	DurationMs    int       `json:"duration_ms"`
	SampleRate    int       `json:"sample_rate"`
	BPM           float64   `json:"bpm"`
	TempoFallback bool      `json:"tempo_fallback"`
	Key           string    `json:"key"`
	Frames        int       `json:"frames"`
	CreatedAt     time.Time `gorm:"index:idx_analysis_created" json:"created_at"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("AUDIOSCOPE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&AnalysisRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	customlogger.GetLogger().Debugf("opened analysis history at %s", dbPath)
	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveAnalysis inserts rec, assigning an id and timestamp when they are unset.
func (c *DBClient) SaveAnalysis(rec *AnalysisRecord) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	if rec.ID == "" {
		rec.ID = utils.GenerateUUID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := c.DB.Create(rec).Error; err != nil {
		return "", fmt.Errorf("creating analysis: %w", err)
	}
	return rec.ID, nil
}

// ListAnalyses returns the newest records first. A limit <= 0 returns all.
func (c *DBClient) ListAnalyses(limit int) ([]AnalysisRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []AnalysisRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	return rows, nil
}

func (c *DBClient) GetAnalysis(id string) (*AnalysisRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rec AnalysisRecord
	if err := c.DB.Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, fmt.Errorf("getting analysis %s: %w", id, err)
	}
	return &rec, nil
}

// DeleteAnalysis removes a record. Deleting an unknown id returns ErrNotFound.
func (c *DBClient) DeleteAnalysis(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("id = ?", id).Delete(&AnalysisRecord{})
	if res.Error != nil {
		return fmt.Errorf("deleting analysis %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deleting analysis %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountAnalyses returns the number of stored records.
func (c *DBClient) CountAnalyses() (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&AnalysisRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting analyses: %w", err)
	}
	return int(count), nil
}
