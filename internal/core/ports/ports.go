// Package ports declares the small, focused interfaces the gateway
// pipeline is built from, mirroring the teacher's interface-composition
// style (internal/core/ports/ports.go in lcalzada-xor-wmap).
package ports

import (
	"context"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
)

// Classifier implements the stateless sender classifier (spec §4.1).
type Classifier interface {
	Classify(addr domain.PeerAddr) domain.PeerIdentity
}

// Parser implements the MAVLink v2 frame parser/encoder (spec §4.2).
type Parser interface {
	Parse(peer domain.PeerAddr, raw []byte, ingressNS int64) ([]domain.ParsedCommand, error)
	Encode(cmd domain.ParsedCommand) ([]byte, error)
}

// AuthorizationGate implements the sender x message-type matrix (spec §4.3).
type AuthorizationGate interface {
	// Admit reports whether a frame of the given wire message type is
	// admitted to the detector stage for the given peer identity, and
	// whether a denial should be logged as a security event (vs. dropped
	// silently).
	Admit(peer domain.PeerIdentity, mt domain.MessageType) (admitted bool, securityEvent bool)
}

// ReplayManager implements nonce issuance and replay detection (spec §4.4).
type ReplayManager interface {
	IssueNonce() [12]byte
	Check(nonce [12]byte, timestamp int64, payloadHash [32]byte) domain.ReplayMetrics
	Reset()
}

// CryptoEnvelope implements the optional AES-GCM payload envelope
// (spec §4.5).
type CryptoEnvelope interface {
	Encrypt(plaintext []byte) (nonce [12]byte, ciphertext []byte, err error)
	Decrypt(nonce [12]byte, ciphertext []byte) (plaintext []byte, err error)
}

// KeyManager owns the root/session key hierarchy, rotation, and
// revocation (spec §4.5).
type KeyManager interface {
	Context() domain.CryptoContext
	Rotate(ctx context.Context, reason string) error
	Revoke(ctx context.Context) error
	Close() error
}

// FloodDetector implements the rate/burst/sustained-load scorer (spec §4.6).
type FloodDetector interface {
	Observe(at time.Time) domain.FloodVerdict
	Reset()
}

// InjectionDetectorService implements the five stacked checks of spec §4.7.
// UpdateState refreshes the flight-state context the authorization and
// context checks are evaluated against; Check runs the stack for one
// command and returns its aggregated verdict.
type InjectionDetectorService interface {
	UpdateState(state domain.VehicleState, emergency bool)
	Check(cmd domain.ParsedCommand, sourceAuthenticated bool, mlRiskScore float64) domain.InjectionMetrics
}

// IntentFirewall implements the rule-based mission-phase-aware intent
// check (spec §4.8).
type IntentFirewall interface {
	UpdateState(state domain.VehicleState)
	Analyze(cmd domain.ParsedCommand) domain.IntentFirewallResult
}

// FeatureExtractor implements the 37-dim windowed feature vector
// (spec §4.9).
type FeatureExtractor interface {
	Observe(cmd domain.ParsedCommand, state domain.VehicleState) ([]float64, bool)
}

// MLIntentEngine implements the advisory gradient-boosted-style intent
// classifier/regressor (spec §4.10).
type MLIntentEngine interface {
	Predict(ctx context.Context, features []float64) domain.MLIntentResult
}

// ShadowExecutor implements the short-horizon kinematic projector
// (spec §4.11).
type ShadowExecutor interface {
	Predict(state domain.VehicleState, cmd domain.ParsedCommand) domain.ShadowResult
}

// DecisionEngine implements the weighted risk aggregation (spec §4.12).
type DecisionEngine interface {
	Decide(inputs domain.RiskInputs) domain.Decision
}

// AuditSink is one of the three append-only sinks of spec §4.13.
type AuditSink interface {
	Write(ctx context.Context, rec domain.AuditRecord) error
	Rotate() error
	Close() error
}

// AuditLogger orchestrates all sinks plus the session summary (spec §4.13).
type AuditLogger interface {
	Log(ctx context.Context, rec domain.AuditRecord) error
	Summary() domain.SessionSummary
	Flush(ctx context.Context) error
	Close() error
}

// Storage is the queryable audit index (spec §6's storage.sqlite_path):
// a SQL-backed sink that, unlike the append-only file sinks, supports
// a by-session lookup of the most recent records.
type Storage interface {
	AuditSink
	RecordsBySession(ctx context.Context, sessionID string, limit int) ([]domain.AuditRecord, error)
}
