package replay

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestIssueNonce_Monotonic(t *testing.T) {
	m := New(100, 30)
	n1 := m.IssueNonce()
	n2 := m.IssueNonce()
	require.NotEqual(t, n1, n2)
}

func TestCheck_AcceptThenRejectSameNonce(t *testing.T) {
	m := New(100, 30)
	now := time.Now().UnixNano()
	hash := sha256.Sum256([]byte("a"))
	nonce := m.IssueNonce()

	first := m.Check(nonce, now, hash)
	require.Equal(t, domain.ReplayClean, first.Verdict)

	second := m.Check(nonce, now, hash)
	require.Equal(t, domain.ReplayHit, second.Verdict)
	require.Equal(t, 1.0, second.Confidence)
}

func TestCheck_StaleTimestampRejected(t *testing.T) {
	m := New(100, 30)
	old := time.Now().Add(-1 * time.Minute).UnixNano()
	hash := sha256.Sum256([]byte("b"))
	nonce := m.IssueNonce()

	result := m.Check(nonce, old, hash)
	require.Equal(t, domain.ReplayHit, result.Verdict)
	require.Equal(t, 0.85, result.Confidence)
}

func TestReset_ClearsWindow(t *testing.T) {
	m := New(100, 30)
	now := time.Now().UnixNano()
	hash := sha256.Sum256([]byte("c"))
	nonce := m.IssueNonce()
	m.Check(nonce, now, hash)

	m.Reset()
	result := m.Check(nonce, now, hash)
	require.Equal(t, domain.ReplayClean, result.Verdict)
}
