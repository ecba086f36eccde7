// Package artifactstore persists immutable backtest run records. Ported
// from the backtest core reference implementation's artifact_store module,
// re-expressed over gorm (matching the teacher's database layer) instead
// of the original's direct SQLite driver, so it gets the same dual
// sqlite/postgres dial the teacher's internal/database package uses.
package artifactstore

import (
	"compress/gzip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SchemaVersion tracks migrations to the run_artifacts table shape.
// v1: initial table. v2: added publication_status and provenance columns.
const SchemaVersion = 2

type PublicationStatus int

const (
	StatusInternal  PublicationStatus = 0
	StatusPublished PublicationStatus = 1
	StatusRetracted PublicationStatus = 2
)

// RunArtifactRow is the gorm model for the run_artifacts table. Column
// names mirror the reference implementation's schema (run_id primary key,
// indexed provenance columns, compressed JSON blob).
type RunArtifactRow struct {
	RunId             string `gorm:"primaryKey;column:run_id"`
	FingerprintHash   string `gorm:"column:fingerprint_hash;index"`
	ManifestHash      string `gorm:"column:manifest_hash"`
	PersistedAt       int64  `gorm:"column:persisted_at;index"`
	StrategyName      string `gorm:"column:strategy_name;index"`
	StrategyVersion   string `gorm:"column:strategy_version"`
	ProductionGrade   bool   `gorm:"column:production_grade;index"`
	IsTrusted         bool   `gorm:"column:is_trusted"`
	GateSuitePassed   bool   `gorm:"column:gate_suite_passed"`
	TrustLevel        string `gorm:"column:trust_level"`
	FinalPnl          float64 `gorm:"column:final_pnl"`
	TotalFills        int64  `gorm:"column:total_fills"`
	SharpeRatio       float64 `gorm:"column:sharpe_ratio"`
	MaxDrawdown       float64 `gorm:"column:max_drawdown"`
	WinRate           float64 `gorm:"column:win_rate"`
	PublicationStatus int    `gorm:"column:publication_status;index"`
	DatasetVersionId  string `gorm:"column:dataset_version_id"`
	DatasetReadiness  string `gorm:"column:dataset_readiness"`
	SettlementSource  string `gorm:"column:settlement_source"`
	IntegrityPolicy   string `gorm:"column:integrity_policy"`
	StrategyCodeHash  string `gorm:"column:strategy_code_hash"`
	ArtifactBlob      []byte `gorm:"column:artifact_blob"`
}

func (RunArtifactRow) TableName() string { return "run_artifacts" }

// RunArtifact is the decompressed, deserialized view callers work with.
type RunArtifact struct {
	RunId            string
	FingerprintHash  string
	ManifestHash     string
	PersistedAt      time.Time
	StrategyName     string
	StrategyVersion  string
	ProductionGrade  bool
	IsTrusted        bool
	TrustLevel       string
	GateSuitePassed  bool
	FinalPnl         float64
	TotalFills       int64
	SharpeRatio      float64
	MaxDrawdown      float64
	WinRate          float64
	DatasetVersionId string
	DatasetReadiness string
	SettlementSource string
	IntegrityPolicy  string
	StrategyCodeHash string
	Payload          json.RawMessage
}

var (
	ErrAlreadyExists        = errors.New("artifactstore: run already exists")
	ErrPublicationRejected  = errors.New("artifactstore: publication gate not satisfied")
	ErrNotFound             = errors.New("artifactstore: run not found")
	ErrAlreadyPublishedOrMissing = errors.New("artifactstore: already published or does not exist")
	ErrNotPublished         = errors.New("artifactstore: is not published")
)

// Store wraps a gorm connection over either sqlite (file path or
// ":memory:") or postgres (a "postgres://" DSN), following the same
// prefix-dispatch pattern the teacher's database layer uses.
type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("artifactstore: open: %w", err)
	}
	if err := db.AutoMigrate(&RunArtifactRow{}); err != nil {
		return nil, fmt.Errorf("artifactstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func InMemory() (*Store, error) { return Open(":memory:") }

func (s *Store) Exists(runId string) bool {
	var count int64
	s.db.Model(&RunArtifactRow{}).Where("run_id = ?", runId).Count(&count)
	return count > 0
}

// Persist stores a run as Internal (unpublished).
func (s *Store) Persist(a RunArtifact) error {
	return s.PersistWithStatus(a, StatusInternal)
}

// PersistWithStatus stores a run at the given status. Publishing directly
// requires the three-gate check (is_trusted && production_grade &&
// gate_suite_passed) to already hold.
func (s *Store) PersistWithStatus(a RunArtifact, status PublicationStatus) error {
	if s.Exists(a.RunId) {
		return ErrAlreadyExists
	}
	if status == StatusPublished {
		if err := checkPublicationGates(a); err != nil {
			return err
		}
	}
	blob, err := compress(a.Payload)
	if err != nil {
		return fmt.Errorf("artifactstore: compress: %w", err)
	}
	row := RunArtifactRow{
		RunId: a.RunId, FingerprintHash: a.FingerprintHash, ManifestHash: a.ManifestHash,
		PersistedAt: a.PersistedAt.UnixNano(), StrategyName: a.StrategyName, StrategyVersion: a.StrategyVersion,
		ProductionGrade: a.ProductionGrade, IsTrusted: a.IsTrusted, GateSuitePassed: a.GateSuitePassed, TrustLevel: a.TrustLevel,
		FinalPnl: a.FinalPnl, TotalFills: a.TotalFills, SharpeRatio: a.SharpeRatio, MaxDrawdown: a.MaxDrawdown,
		WinRate: a.WinRate, PublicationStatus: int(status), DatasetVersionId: a.DatasetVersionId,
		DatasetReadiness: a.DatasetReadiness, SettlementSource: a.SettlementSource, IntegrityPolicy: a.IntegrityPolicy,
		StrategyCodeHash: a.StrategyCodeHash, ArtifactBlob: blob,
	}
	return s.db.Create(&row).Error
}

func checkPublicationGates(a RunArtifact) error {
	if !a.IsTrusted {
		return fmt.Errorf("%w: not trusted", ErrPublicationRejected)
	}
	if !a.ProductionGrade {
		return fmt.Errorf("%w: not production grade", ErrPublicationRejected)
	}
	if !a.GateSuitePassed {
		return fmt.Errorf("%w: gate suite did not pass", ErrPublicationRejected)
	}
	return nil
}

// Publish transitions an existing Internal run to Published, re-validating
// the gates against the stored record.
func (s *Store) Publish(runId string) error {
	a, err := s.Get(runId)
	if err != nil {
		return err
	}
	if err := checkPublicationGates(*a); err != nil {
		return err
	}
	res := s.db.Model(&RunArtifactRow{}).
		Where("run_id = ? AND publication_status = ?", runId, StatusInternal).
		Update("publication_status", StatusPublished)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyPublishedOrMissing
	}
	return nil
}

// Retract moves a Published run to Retracted. It never deletes the row —
// retraction is a status change, not an erasure.
func (s *Store) Retract(runId string) error {
	res := s.db.Model(&RunArtifactRow{}).
		Where("run_id = ? AND publication_status = ?", runId, StatusPublished).
		Update("publication_status", StatusRetracted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPublished
	}
	return nil
}

func (s *Store) Get(runId string) (*RunArtifact, error) {
	return s.get(runId, false)
}

func (s *Store) GetIfPublished(runId string) (*RunArtifact, error) {
	return s.get(runId, true)
}

func (s *Store) get(runId string, publishedOnly bool) (*RunArtifact, error) {
	var row RunArtifactRow
	q := s.db.Where("run_id = ?", runId)
	if publishedOnly {
		q = q.Where("publication_status = ?", StatusPublished)
	}
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	payload, err := decompress(row.ArtifactBlob)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: decompress: %w", err)
	}
	return &RunArtifact{
		RunId: row.RunId, FingerprintHash: row.FingerprintHash, ManifestHash: row.ManifestHash,
		PersistedAt: time.Unix(0, row.PersistedAt), StrategyName: row.StrategyName, StrategyVersion: row.StrategyVersion,
		ProductionGrade: row.ProductionGrade, IsTrusted: row.IsTrusted, GateSuitePassed: row.GateSuitePassed, TrustLevel: row.TrustLevel,
		FinalPnl: row.FinalPnl, TotalFills: row.TotalFills, SharpeRatio: row.SharpeRatio, MaxDrawdown: row.MaxDrawdown,
		WinRate: row.WinRate, DatasetVersionId: row.DatasetVersionId, DatasetReadiness: row.DatasetReadiness,
		SettlementSource: row.SettlementSource, IntegrityPolicy: row.IntegrityPolicy, StrategyCodeHash: row.StrategyCodeHash,
		Payload: payload,
	}, nil
}

// ListFilter constrains List's results.
type ListFilter struct {
	StrategyName    string
	ProductionGrade *bool
	PublishedOnly   bool
}

type SortField int

const (
	SortByPersistedAt SortField = iota
	SortBySharpeRatio
	SortByFinalPnl
)

// List returns runs matching filter, sorted by sortField (descending) with
// run_id as a deterministic tiebreaker.
func (s *Store) List(filter ListFilter, sortField SortField, limit int) ([]RunArtifact, error) {
	q := s.db.Model(&RunArtifactRow{})
	if filter.StrategyName != "" {
		q = q.Where("strategy_name = ?", filter.StrategyName)
	}
	if filter.ProductionGrade != nil {
		q = q.Where("production_grade = ?", *filter.ProductionGrade)
	}
	if filter.PublishedOnly {
		q = q.Where("publication_status = ?", StatusPublished)
	}
	var col string
	switch sortField {
	case SortBySharpeRatio:
		col = "sharpe_ratio"
	case SortByFinalPnl:
		col = "final_pnl"
	default:
		col = "persisted_at"
	}
	q = q.Order(fmt.Sprintf("%s DESC, run_id ASC", col))
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []RunArtifactRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]RunArtifact, 0, len(rows))
	for _, row := range rows {
		payload, _ := decompress(row.ArtifactBlob)
		out = append(out, RunArtifact{
			RunId: row.RunId, StrategyName: row.StrategyName, ProductionGrade: row.ProductionGrade,
			IsTrusted: row.IsTrusted, GateSuitePassed: row.GateSuitePassed, FinalPnl: row.FinalPnl, SharpeRatio: row.SharpeRatio,
			MaxDrawdown: row.MaxDrawdown, WinRate: row.WinRate, Payload: payload,
		})
	}
	return out, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
