package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is one append-only entry written by the Audit Logger
// (spec §3, §4.13). It carries enough detail for the machine-trail sink;
// the minimal-compliance sink projects a subset of these fields.
type AuditRecord struct {
	ID             string
	SessionID      string
	SequenceNumber uint64
	Timestamp      time.Time
	Kind           CommandKind
	CommandSummary string
	CryptoValid    bool
	ReplayVerdict  ReplayVerdict
	FloodVerdict   bool
	InjectionScore float64
	IntentMismatch bool
	MLIntent       IntentClass
	MLRisk         float64
	GeofenceViolation bool
	Decision       Decision
	Rationale      string
}

// NewAuditRecord stamps a fresh record with a generated id, mirroring the
// teacher's NewAuditLog factory convention.
func NewAuditRecord(sessionID string, seq uint64, ts time.Time) AuditRecord {
	return AuditRecord{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		SequenceNumber: seq,
		Timestamp:      ts,
	}
}

// SessionSummary aggregates counts/rates/detections across a session,
// written on exit (spec §4.13).
type SessionSummary struct {
	SessionID       string
	StartedAt       time.Time
	EndedAt         time.Time
	TotalDatagrams  uint64
	Accepted        uint64
	Constrained     uint64
	Held            uint64
	RTLTriggered    uint64
	Dropped         uint64
	SecurityEvents  uint64
	FloodDetections uint64
	ReplayDetections uint64
	InjectionDetections uint64
	IntentMismatches uint64
}
