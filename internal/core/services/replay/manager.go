// Package replay implements the Nonce & Replay Manager (spec §4.4),
// grounded on original_source/companion_comp/crypto_layer/nonce_manager.py
// for the nonce construction, and on the teacher's mutex-guarded
// single-writer state pattern (authflood/engine.go).
package replay

import (
	"container/list"
	"encoding/binary"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.ReplayManager = (*Manager)(nil)

const reorderToleranceSec = 5.0
const hashWindowSec = 5.0

type hashEntry struct {
	hash [32]byte
	at   time.Time
}

// Manager is the single writer for the replay window; a short exclusive
// section guards each mutation, and readers are never exposed directly
// (spec §4.4, §5).
type Manager struct {
	mu sync.Mutex

	capacity int
	nonces   map[[12]byte]*list.Element
	order    *list.List // FIFO of [12]byte, oldest at Front

	counter uint64

	maxAcceptedTS float64 // seconds
	tolerance     float64

	hashWindow []hashEntry
}

func New(capacity int, toleranceSec float64) *Manager {
	if capacity <= 0 {
		capacity = 10000
	}
	if toleranceSec <= 0 {
		toleranceSec = 30.0
	}
	return &Manager{
		capacity:  capacity,
		nonces:    make(map[[12]byte]*list.Element),
		order:     list.New(),
		tolerance: toleranceSec,
	}
}

// IssueNonce returns a 12-byte value whose trailing 8 bytes are a
// strictly increasing 64-bit counter, prefix zero-padded (spec §4.4),
// ported byte-for-byte from nonce_manager.py's next_nonce().
func (m *Manager) IssueNonce() [12]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	var nonce [12]byte
	binary.BigEndian.PutUint64(nonce[4:], m.counter)
	return nonce
}

// Check applies the layered rules of spec §4.4, first decisive wins.
func (m *Manager) Check(nonce [12]byte, timestamp int64, payloadHash [32]byte) domain.ReplayMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := float64(time.Now().UnixNano()) / 1e9
	ts := float64(timestamp) / 1e9

	if _, seen := m.nonces[nonce]; seen {
		return domain.ReplayMetrics{Verdict: domain.ReplayHit, Confidence: 1.0, Reason: "nonce already accepted"}
	}

	if abs(now-ts) > m.tolerance {
		return domain.ReplayMetrics{Verdict: domain.ReplayHit, Confidence: 0.85, Reason: "timestamp outside tolerance"}
	}

	if ts < m.maxAcceptedTS-reorderToleranceSec {
		return domain.ReplayMetrics{Verdict: domain.ReplayHit, Confidence: 0.85, Reason: "out-of-order beyond reorder tolerance"}
	}

	for _, e := range m.hashWindow {
		if e.hash == payloadHash && abs(ts-float64(e.at.UnixNano())/1e9) < hashWindowSec {
			return domain.ReplayMetrics{Verdict: domain.ReplayHit, Confidence: 0.70, Reason: "semantic duplicate within hash window"}
		}
	}

	m.recordAccepted(nonce, ts, payloadHash)
	return domain.ReplayMetrics{Verdict: domain.ReplayClean, Confidence: 0.0, Reason: "clean"}
}

func (m *Manager) recordAccepted(nonce [12]byte, ts float64, hash [32]byte) {
	if len(m.nonces) >= m.capacity {
		oldest := m.order.Front()
		if oldest != nil {
			old := oldest.Value.([12]byte)
			delete(m.nonces, old)
			m.order.Remove(oldest)
		}
	}
	el := m.order.PushBack(nonce)
	m.nonces[nonce] = el

	if ts > m.maxAcceptedTS {
		m.maxAcceptedTS = ts
	}

	m.hashWindow = append(m.hashWindow, hashEntry{hash: hash, at: time.Unix(0, int64(ts*1e9))})
	cutoff := ts - hashWindowSec
	trimmed := m.hashWindow[:0]
	for _, e := range m.hashWindow {
		if float64(e.at.UnixNano())/1e9 >= cutoff {
			trimmed = append(trimmed, e)
		}
	}
	m.hashWindow = trimmed
}

// Reset wipes all window state (used by tests and after recoverable
// faults, spec §4.6's Reset semantics extended to this window too).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces = make(map[[12]byte]*list.Element)
	m.order = list.New()
	m.maxAcceptedTS = 0
	m.hashWindow = nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
