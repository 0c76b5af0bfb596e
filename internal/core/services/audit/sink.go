// Package audit implements the Audit Logger (spec §4.13): three
// append-only sinks (human transcript, JSONL machine trail, minimal
// compliance JSONL) plus a session summary on exit. Generalized from the
// teacher's single-sink AuditService{repo ports.AuditRepository}
// (core/services/audit/audit_service.go) into three independent sinks,
// since the teacher never needed more than one audit destination.
// StorageError (spec §7) on any sink write failure degrades that sink to
// a stderr mirror rather than aborting the session.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aegis-gateway/aegis/internal/core/domain"
)

// fileSink is the shared append-only-file shape underlying all three
// sinks: open in append mode, one write per record, rotate by renaming
// with a numeric suffix once the size threshold is crossed.
type fileSink struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	f        *os.File
	written  int64
	name     string
	degraded bool
}

func newFileSink(name, path string, maxBytes int64) (*fileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: mkdir for %s: %w", name, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", name, err)
	}
	info, _ := f.Stat()
	var size int64
	if info != nil {
		size = info.Size()
	}
	return &fileSink{name: name, path: path, maxBytes: maxBytes, f: f, written: size}, nil
}

func (s *fileSink) writeLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return &domain.StorageError{Sink: s.name, Err: fmt.Errorf("sink closed")}
	}

	n, err := s.f.Write(line)
	if err != nil {
		s.degraded = true
		fmt.Fprintf(os.Stderr, "[audit:%s degraded] %s", s.name, line)
		return &domain.StorageError{Sink: s.name, Err: err}
	}
	s.written += int64(n)

	if s.maxBytes > 0 && s.written >= s.maxBytes {
		s.rotateLocked()
	}
	return nil
}

func (s *fileSink) rotateLocked() {
	if s.f == nil {
		return
	}
	s.f.Close()
	rotated := s.path + ".1"
	os.Rename(s.path, rotated)
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		s.f = nil
		s.degraded = true
		return
	}
	s.f = f
	s.written = 0
}

func (s *fileSink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotateLocked()
	if s.f == nil {
		return &domain.StorageError{Sink: s.name, Err: fmt.Errorf("rotate failed to reopen")}
	}
	return nil
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// HumanSink writes a one-line-per-record plaintext transcript meant for
// an operator tailing the log during a flight.
type HumanSink struct{ fs *fileSink }

func NewHumanSink(path string, maxBytes int64) (*HumanSink, error) {
	fs, err := newFileSink("human", path, maxBytes)
	if err != nil {
		return nil, err
	}
	return &HumanSink{fs: fs}, nil
}

func (s *HumanSink) Write(ctx context.Context, rec domain.AuditRecord) error {
	line := fmt.Sprintf("%s seq=%d kind=%-16s decision=%-10s severity=%-8s risk=%.2f %s\n",
		rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		rec.SequenceNumber, rec.Kind, rec.Decision.State, rec.Decision.Severity,
		rec.Decision.TotalRisk, rec.Rationale)
	return s.fs.writeLine([]byte(line))
}

func (s *HumanSink) Rotate() error { return s.fs.Rotate() }
func (s *HumanSink) Close() error  { return s.fs.Close() }

// MachineSink writes the full AuditRecord as one JSON object per line —
// the authoritative machine-readable trail (spec §4.13).
type MachineSink struct{ fs *fileSink }

func NewMachineSink(path string, maxBytes int64) (*MachineSink, error) {
	fs, err := newFileSink("machine", path, maxBytes)
	if err != nil {
		return nil, err
	}
	return &MachineSink{fs: fs}, nil
}

func (s *MachineSink) Write(ctx context.Context, rec domain.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &domain.StorageError{Sink: "machine", Err: err}
	}
	data = append(data, '\n')
	return s.fs.writeLine(data)
}

func (s *MachineSink) Rotate() error { return s.fs.Rotate() }
func (s *MachineSink) Close() error  { return s.fs.Close() }

// complianceRecord is the minimal projection written by ComplianceSink:
// exactly the fields spec §4.13 names for post-incident compliance —
// session, command id, timestamp, kind, decision, severity, risk,
// crypto-valid, geofence-violation — never raw command payloads.
type complianceRecord struct {
	SessionID         string  `json:"session_id"`
	CommandID         string  `json:"command_id"`
	Seq               uint64  `json:"seq"`
	Timestamp         string  `json:"ts"`
	Kind              string  `json:"kind"`
	Decision          string  `json:"decision"`
	Severity          string  `json:"severity"`
	Risk              float64 `json:"risk"`
	CryptoValid       bool    `json:"crypto_valid"`
	GeofenceViolation bool    `json:"geofence_violation"`
}

// ComplianceSink writes the minimal compliance JSONL sink (spec §4.13):
// the complianceRecord fields only, no command content.
type ComplianceSink struct{ fs *fileSink }

func NewComplianceSink(path string, maxBytes int64) (*ComplianceSink, error) {
	fs, err := newFileSink("compliance", path, maxBytes)
	if err != nil {
		return nil, err
	}
	return &ComplianceSink{fs: fs}, nil
}

func (s *ComplianceSink) Write(ctx context.Context, rec domain.AuditRecord) error {
	cr := complianceRecord{
		SessionID:         rec.SessionID,
		CommandID:         rec.ID,
		Seq:               rec.SequenceNumber,
		Timestamp:         rec.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Kind:              string(rec.Kind),
		Decision:          string(rec.Decision.State),
		Severity:          string(rec.Decision.Severity),
		Risk:              rec.Decision.TotalRisk,
		CryptoValid:       rec.CryptoValid,
		GeofenceViolation: rec.GeofenceViolation,
	}
	data, err := json.Marshal(cr)
	if err != nil {
		return &domain.StorageError{Sink: "compliance", Err: err}
	}
	data = append(data, '\n')
	return s.fs.writeLine(data)
}

func (s *ComplianceSink) Rotate() error { return s.fs.Rotate() }
func (s *ComplianceSink) Close() error  { return s.fs.Close() }
