package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

// Config holds the sink directory, session id and rotation threshold.
// The three sinks are written under LogDir with fixed file names
// (decisions.human.log, decisions.jsonl, audit.jsonl).
type Config struct {
	LogDir      string
	SessionID   string
	MaxSinkSize int64
}

// Logger orchestrates the three append-only sinks plus the running
// session summary, generalized from the teacher's single-repo
// AuditService.Log into a fan-out writer (see package doc).
type Logger struct {
	mu      sync.Mutex
	sinks   []ports.AuditSink
	summary domain.SessionSummary
	logDir  string
}

var _ ports.AuditLogger = (*Logger)(nil)

func NewLogger(cfg Config) (*Logger, error) {
	if cfg.MaxSinkSize <= 0 {
		cfg.MaxSinkSize = 50 * 1024 * 1024
	}
	if err := os.MkdirAll(cfg.LogDir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: mkdir log dir: %w", err)
	}

	human, err := NewHumanSink(filepath.Join(cfg.LogDir, "decisions.human.log"), cfg.MaxSinkSize)
	if err != nil {
		return nil, err
	}
	machine, err := NewMachineSink(filepath.Join(cfg.LogDir, "decisions.jsonl"), cfg.MaxSinkSize)
	if err != nil {
		return nil, err
	}
	compliance, err := NewComplianceSink(filepath.Join(cfg.LogDir, "audit.jsonl"), cfg.MaxSinkSize)
	if err != nil {
		return nil, err
	}

	return &Logger{
		sinks:  []ports.AuditSink{human, machine, compliance},
		logDir: cfg.LogDir,
		summary: domain.SessionSummary{
			SessionID: cfg.SessionID,
			StartedAt: time.Now(),
		},
	}, nil
}

// AddSink appends an additional sink (e.g. the SQLite audit index) to an
// already-constructed Logger, so optional storage can be wired in from
// config without changing NewLogger's signature.
func (l *Logger) AddSink(s ports.AuditSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Log fans the record out to every sink and folds it into the running
// summary. A sink write failure degrades that sink only (spec §7); it
// never aborts the session and the error is returned for the caller to
// surface via structured logging.
func (l *Logger) Log(ctx context.Context, rec domain.AuditRecord) error {
	l.mu.Lock()
	l.fold(rec)
	l.mu.Unlock()

	var firstErr error
	for _, s := range l.sinks {
		if err := s.Write(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Logger) fold(rec domain.AuditRecord) {
	l.summary.TotalDatagrams++
	switch rec.Decision.State {
	case domain.StateAccept:
		l.summary.Accepted++
	case domain.StateConstrain:
		l.summary.Constrained++
	case domain.StateHold:
		l.summary.Held++
	case domain.StateRTL:
		l.summary.RTLTriggered++
	case domain.StateDrop:
		l.summary.Dropped++
	}
	if rec.Decision.Severity != domain.SeverityNone {
		l.summary.SecurityEvents++
	}
	if rec.FloodVerdict {
		l.summary.FloodDetections++
	}
	if rec.ReplayVerdict == domain.ReplayHit {
		l.summary.ReplayDetections++
	}
	if rec.InjectionScore >= 0.5 {
		l.summary.InjectionDetections++
	}
	if rec.IntentMismatch {
		l.summary.IntentMismatches++
	}
}

func (l *Logger) Summary() domain.SessionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.summary
	s.EndedAt = time.Now()
	return s
}

// Flush persists the session summary to <log_dir>/summary_<session>.json
// (spec §4.13). Called on graceful shutdown, not on every record.
func (l *Logger) Flush(ctx context.Context) error {
	summary := l.Summary()
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal summary: %w", err)
	}
	path := filepath.Join(l.logDir, "summary_"+summary.SessionID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &domain.StorageError{Sink: "summary", Err: err}
	}
	return nil
}

// LoadSummary reads a previously flushed session summary back from disk,
// for the `aegis audit summary` CLI subcommand (spec §4.13).
func LoadSummary(logDir, sessionID string) (domain.SessionSummary, error) {
	var summary domain.SessionSummary
	path := filepath.Join(logDir, "summary_"+sessionID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return summary, &domain.StorageError{Sink: "summary", Err: err}
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("audit: parse summary: %w", err)
	}
	return summary, nil
}

func (l *Logger) Close() error {
	var firstErr error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
