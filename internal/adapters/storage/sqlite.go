// Package storage is AEGIS's queryable audit index (spec §6's
// storage.sqlite_path): a SQLite-backed mirror of the append-only audit
// trail with a by-session lookup (RecordsBySession); neither the CLI nor
// the operator HTTP surface queries it — the JSONL sinks in
// internal/core/services/audit remain the authoritative record. Grounded
// on the teacher's SQLiteAdapter (internal/adapters/storage/sqlite.go):
// same gorm.Open/AutoMigrate/WAL-pragma/tracing-plugin bootstrap,
// repurposed from a device/vulnerability inventory onto one audit-record
// table.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// AuditRecordModel is the GORM projection of domain.AuditRecord.
type AuditRecordModel struct {
	ID                string `gorm:"primaryKey"`
	SessionID         string `gorm:"index"`
	SequenceNumber    uint64 `gorm:"index"`
	Timestamp         int64
	Kind              string
	CommandSummary    string
	CryptoValid       bool
	ReplayVerdict     string
	FloodVerdict      bool
	InjectionScore    float64
	IntentMismatch    bool
	MLIntent          string
	MLRisk            float64
	GeofenceViolation bool
	DecisionState     string
	DecisionSeverity  string
	TotalRisk         float64
	Rationale         string
}

func (AuditRecordModel) TableName() string { return "audit_records" }

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// NewSQLiteAdapter opens (or creates) the audit index database and
// migrates its schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&AuditRecordModel{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("storage: install otel tracing plugin: %w", err)
	}

	// WAL mode allows a writer and concurrent readers (CLI queries
	// running alongside the live gateway session).
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")
	db.Exec("PRAGMA synchronous=NORMAL;")

	db.Exec("CREATE INDEX IF NOT EXISTS idx_audit_session_seq ON audit_records(session_id, sequence_number)")

	return &SQLiteAdapter{db: db}, nil
}

// Write inserts one audit record into the index (implements
// ports.AuditSink, so the Logger can fan out to it alongside the
// file-based sinks).
func (a *SQLiteAdapter) Write(ctx context.Context, rec domain.AuditRecord) error {
	model := toModel(rec)
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return &domain.StorageError{Sink: "sqlite", Err: err}
	}
	return nil
}

// Rotate is a no-op for the SQLite index: there is nothing to roll over,
// the table simply accumulates rows.
func (a *SQLiteAdapter) Rotate() error { return nil }

// RecordsBySession returns the most recent limit records for a session,
// newest first (limit defaults to 100).
func (a *SQLiteAdapter) RecordsBySession(ctx context.Context, sessionID string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []AuditRecordModel
	err := a.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence_number DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, &domain.StorageError{Sink: "sqlite", Err: err}
	}

	records := make([]domain.AuditRecord, len(models))
	for i, m := range models {
		records[i] = toDomain(m)
	}
	return records, nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModel(rec domain.AuditRecord) AuditRecordModel {
	return AuditRecordModel{
		ID:                rec.ID,
		SessionID:         rec.SessionID,
		SequenceNumber:    rec.SequenceNumber,
		Timestamp:         rec.Timestamp.UnixNano(),
		Kind:              string(rec.Kind),
		CommandSummary:    rec.CommandSummary,
		CryptoValid:       rec.CryptoValid,
		ReplayVerdict:     string(rec.ReplayVerdict),
		FloodVerdict:      rec.FloodVerdict,
		InjectionScore:    rec.InjectionScore,
		IntentMismatch:    rec.IntentMismatch,
		MLIntent:          string(rec.MLIntent),
		MLRisk:            rec.MLRisk,
		GeofenceViolation: rec.GeofenceViolation,
		DecisionState:     string(rec.Decision.State),
		DecisionSeverity:  string(rec.Decision.Severity),
		TotalRisk:         rec.Decision.TotalRisk,
		Rationale:         rec.Rationale,
	}
}

func toDomain(m AuditRecordModel) domain.AuditRecord {
	return domain.AuditRecord{
		ID:                m.ID,
		SessionID:         m.SessionID,
		SequenceNumber:    m.SequenceNumber,
		Timestamp:         time.Unix(0, m.Timestamp),
		Kind:              domain.CommandKind(m.Kind),
		CommandSummary:    m.CommandSummary,
		CryptoValid:       m.CryptoValid,
		ReplayVerdict:     domain.ReplayVerdict(m.ReplayVerdict),
		FloodVerdict:      m.FloodVerdict,
		InjectionScore:    m.InjectionScore,
		IntentMismatch:    m.IntentMismatch,
		MLIntent:          domain.IntentClass(m.MLIntent),
		MLRisk:            m.MLRisk,
		GeofenceViolation: m.GeofenceViolation,
		Decision: domain.Decision{
			State:     domain.DecisionState(m.DecisionState),
			Severity:  domain.Severity(m.DecisionSeverity),
			TotalRisk: m.TotalRisk,
		},
		Rationale: m.Rationale,
	}
}

var _ ports.Storage = (*SQLiteAdapter)(nil)
