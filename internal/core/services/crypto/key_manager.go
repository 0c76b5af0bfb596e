package crypto

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

var _ ports.KeyManager = (*KeyManager)(nil)

const (
	rootKeyPEMType = "AEGIS ROOT KEY"
	derivationInfoSuffix = "session-key-derivation"
)

// KeyManagerConfig mirrors the crypto.* config keys of spec §6.
type KeyManagerConfig struct {
	RootKeyPath      string
	SessionKeyPath   string
	MetadataPath     string
	SessionLifetime  time.Duration
	MaxCommandsPer   uint64
	GracePeriod      time.Duration
	Strict           bool
}

// KeyManager owns the root/session key hierarchy: derivation, rotation,
// and revocation (spec §4.5), grounded on key_manager.py's
// load-or-provision-with-fallback pattern (SPEC_FULL.md §C). Constructed
// explicitly and passed in by internal/app — no package-level singleton
// (spec §9 explicitly flags that antipattern).
type KeyManager struct {
	mu  sync.RWMutex
	cfg KeyManagerConfig

	rootKey [32]byte
	ctx     domain.CryptoContext

	current  *Envelope
	previous *Envelope
}

// NewKeyManager loads or provisions the root key and derives the initial
// session key.
func NewKeyManager(cfg KeyManagerConfig) (*KeyManager, error) {
	km := &KeyManager{cfg: cfg}

	root, err := loadOrProvisionRootKey(cfg.RootKeyPath, cfg.Strict)
	if err != nil {
		return nil, err
	}
	km.rootKey = root

	sessionID := uuid.NewString()
	generation := uint64(1)
	revoked := false
	if cfg.MetadataPath != "" {
		if prev, err := LoadMetadata(cfg.MetadataPath); err == nil {
			generation = prev.Generation + 1
			// A revocation persists across restarts: the gateway stays in
			// emergency failsafe mode until an operator clears the
			// metadata record by hand (spec §7's "manual reset").
			revoked = prev.State == domain.KeyRevoked
		}
	}

	if err := km.deriveSession(sessionID, generation); err != nil {
		return nil, err
	}
	if revoked {
		km.mu.Lock()
		km.ctx.Meta.State = domain.KeyRevoked
		km.mu.Unlock()
	}
	if err := km.persistMetadata(); err != nil {
		return nil, err
	}
	return km, nil
}

// persistMetadata writes the current SessionMetadata to cfg.MetadataPath
// (spec §6's crypto/key_metadata.json) so the next NewKeyManager on the
// same path restores the key generation and revocation state. A write
// failure is surfaced to
// the caller but never corrupts in-memory state.
func (km *KeyManager) persistMetadata() error {
	if km.cfg.MetadataPath == "" {
		return nil
	}
	km.mu.RLock()
	meta := km.ctx.Meta
	km.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(km.cfg.MetadataPath), 0o700); err != nil {
		return fmt.Errorf("crypto: mkdir for key metadata: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("crypto: marshal key metadata: %w", err)
	}
	if err := os.WriteFile(km.cfg.MetadataPath, data, 0o600); err != nil {
		return fmt.Errorf("crypto: persist key metadata: %w", err)
	}
	return nil
}

// LoadMetadata reads a previously persisted SessionMetadata without
// constructing a full KeyManager; NewKeyManager calls it to restore the
// previous run's state.
func LoadMetadata(path string) (domain.SessionMetadata, error) {
	var meta domain.SessionMetadata
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("crypto: read key metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("crypto: parse key metadata: %w", err)
	}
	return meta, nil
}

func loadOrProvisionRootKey(path string, strict bool) ([32]byte, error) {
	var key [32]byte

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			block, _ := pem.Decode(data)
			if block != nil && len(block.Bytes) == 32 {
				copy(key[:], block.Bytes)
				return key, nil
			}
		} else if !os.IsNotExist(err) {
			return key, fmt.Errorf("crypto: read root key: %w", err)
		}
	}

	if strict {
		return key, &domain.ConfigError{Key: "crypto.root_key", Reason: "root key missing and strict mode is set"}
	}

	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, fmt.Errorf("crypto: generate root key: %w", err)
	}
	if path != "" {
		if err := persistRootKey(path, key); err != nil {
			return key, err
		}
	}
	return key, nil
}

func persistRootKey(path string, key [32]byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("crypto: mkdir for root key: %w", err)
	}
	block := &pem.Block{Type: rootKeyPEMType, Bytes: key[:]}
	data := pem.EncodeToMemory(block)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("crypto: persist root key: %w", err)
	}
	return nil
}

// deriveSession computes HKDF(root, session-id || "session-key-derivation")
// per spec §4.5's exact construction, and installs it as the current
// generation.
func (km *KeyManager) deriveSession(sessionID string, generation uint64) error {
	info := []byte(sessionID + derivationInfoSuffix)
	r := hkdf.New(sha256.New, km.rootKey[:], nil, info)

	var sessionKey [32]byte
	if _, err := io.ReadFull(r, sessionKey[:]); err != nil {
		return fmt.Errorf("crypto: hkdf derive: %w", err)
	}

	env, err := NewEnvelope(sessionKey)
	if err != nil {
		return err
	}

	now := time.Now()
	km.mu.Lock()
	defer km.mu.Unlock()
	km.current = env
	km.ctx = domain.CryptoContext{
		RootKey:    km.rootKey,
		SessionKey: sessionKey,
		Meta: domain.SessionMetadata{
			SessionID:  sessionID,
			Generation: generation,
			State:      domain.KeyActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(km.cfg.SessionLifetime),
		},
	}
	return nil
}

func (km *KeyManager) Context() domain.CryptoContext {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.ctx
}

// Rotate derives a new session key; the previous generation enters a
// grace state for cfg.GracePeriod, still accepted on ingress but never
// used for egress (spec §4.5).
func (km *KeyManager) Rotate(ctx context.Context, reason string) error {
	km.mu.Lock()
	prevEnv := km.current
	prevMeta := km.ctx.Meta
	prevMeta.State = domain.KeyGrace
	prevKey := km.ctx.SessionKey
	generation := km.ctx.Meta.Generation + 1
	km.mu.Unlock()

	if err := km.deriveSession(uuid.NewString(), generation); err != nil {
		return err
	}

	km.mu.Lock()
	km.previous = prevEnv
	km.ctx.HasPrevKey = true
	km.ctx.PrevSessionKey = prevKey
	km.mu.Unlock()

	if err := km.persistMetadata(); err != nil {
		return err
	}
	// Grace-only persistence (spec §6's crypto/session_key.bin): the
	// outgoing generation survives on disk just long enough for a
	// restarted gateway to keep accepting in-flight traffic.
	if km.cfg.SessionKeyPath != "" {
		if err := os.WriteFile(km.cfg.SessionKeyPath, prevKey[:], 0o600); err != nil {
			return fmt.Errorf("crypto: persist grace session key: %w", err)
		}
	}

	go km.expireGraceAfter(km.cfg.GracePeriod, prevMeta.SessionID)
	return nil
}

func (km *KeyManager) expireGraceAfter(d time.Duration, sessionID string) {
	if d <= 0 {
		d = 5 * time.Minute
	}
	time.Sleep(d)
	km.mu.Lock()
	defer km.mu.Unlock()
	if km.previous != nil {
		zeroEnvelope(km.previous)
		km.previous = nil
		km.ctx.HasPrevKey = false
		km.ctx.PrevSessionKey = [32]byte{}
	}
	if km.cfg.SessionKeyPath != "" {
		os.Remove(km.cfg.SessionKeyPath)
	}
}

// NoteCommand counts one frame accepted under the current session key
// and rotates when the command-count or lifetime threshold is crossed
// (spec §4.5's time and count rotation triggers).
func (km *KeyManager) NoteCommand(ctx context.Context) error {
	km.mu.Lock()
	km.ctx.Meta.CommandCount++
	state := km.ctx.Meta.State
	needRotate := (km.cfg.MaxCommandsPer > 0 && km.ctx.Meta.CommandCount >= km.cfg.MaxCommandsPer) ||
		time.Now().After(km.ctx.Meta.ExpiresAt)
	km.mu.Unlock()

	if state != domain.KeyActive || !needRotate {
		return nil
	}
	return km.Rotate(ctx, "threshold")
}

// NoteRiskEscalation records the session's risk level and rotates the
// key the first time it escalates to high (spec §4.5's risk-escalation
// rotation trigger). At most one rotation per session generation.
func (km *KeyManager) NoteRiskEscalation(ctx context.Context, level string) error {
	km.mu.Lock()
	already := km.ctx.Meta.RiskLevel == level
	state := km.ctx.Meta.State
	km.ctx.Meta.RiskLevel = level
	km.mu.Unlock()

	if already || state != domain.KeyActive {
		return nil
	}
	if err := km.Rotate(ctx, "risk-escalation"); err != nil {
		return err
	}
	// Carry the level onto the fresh generation so a sustained stream of
	// high-risk decisions does not rotate on every command.
	km.mu.Lock()
	km.ctx.Meta.RiskLevel = level
	km.mu.Unlock()
	return nil
}

// Revoke immediately invalidates the current and any grace-period key.
// Callers must enter emergency mode (accept only rtl/land/disarm) after
// this returns (spec §4.5, §7).
func (km *KeyManager) Revoke(ctx context.Context) error {
	km.mu.Lock()
	km.ctx.Meta.State = domain.KeyRevoked
	km.previous = nil
	km.ctx.HasPrevKey = false
	km.mu.Unlock()

	return km.persistMetadata()
}

// CurrentEnvelope returns the envelope for the active generation.
func (km *KeyManager) CurrentEnvelope() *Envelope {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.current
}

// GraceEnvelope returns the previous generation's envelope, if still
// within its grace window, else nil.
func (km *KeyManager) GraceEnvelope() *Envelope {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.previous
}

// Close zeroizes all key material (spec §4.5, §5's shutdown sequence).
func (km *KeyManager) Close() error {
	km.mu.Lock()
	defer km.mu.Unlock()
	zeroBytes(km.rootKey[:])
	zeroBytes(km.ctx.SessionKey[:])
	zeroBytes(km.ctx.PrevSessionKey[:])
	return nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func zeroEnvelope(e *Envelope) {
	// The AEAD itself does not expose its key for zeroing; the owning
	// KeyManager zeroizes the key bytes it derived instead (see Close).
	_ = e
}
