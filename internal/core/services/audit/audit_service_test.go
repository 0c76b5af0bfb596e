package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	dir := t.TempDir()
	l, err := NewLogger(Config{LogDir: dir, SessionID: "sess-1", MaxSinkSize: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLogger_WritesAllSinks(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()

	rec := domain.NewAuditRecord("sess-1", 1, time.Now())
	rec.Kind = domain.KindNavigation
	rec.Decision = domain.Decision{State: domain.StateAccept, Severity: domain.SeverityNone, TotalRisk: 0.1}
	rec.Rationale = "nominal"

	err := l.Log(ctx, rec)
	assert.NoError(t, err)

	humanPath := filepath.Join(l.logDir, "decisions.human.log")
	machinePath := filepath.Join(l.logDir, "decisions.jsonl")
	compliancePath := filepath.Join(l.logDir, "audit.jsonl")

	for _, p := range []string{humanPath, machinePath, compliancePath} {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}

	var decoded domain.AuditRecord
	data, err := os.ReadFile(machinePath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &decoded))
	assert.Equal(t, rec.ID, decoded.ID)
	assert.Equal(t, domain.StateAccept, decoded.Decision.State)
}

func TestLogger_SummaryCountsByState(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()

	states := []domain.DecisionState{domain.StateAccept, domain.StateAccept, domain.StateHold, domain.StateRTL}
	for i, st := range states {
		rec := domain.NewAuditRecord("sess-1", uint64(i+1), time.Now())
		rec.Decision = domain.Decision{State: st, Severity: domain.SeverityFromRisk(0.5)}
		require.NoError(t, l.Log(ctx, rec))
	}

	summary := l.Summary()
	assert.Equal(t, uint64(4), summary.TotalDatagrams)
	assert.Equal(t, uint64(2), summary.Accepted)
	assert.Equal(t, uint64(1), summary.Held)
	assert.Equal(t, uint64(1), summary.RTLTriggered)
}

func TestLogger_FlushWritesSummaryFile(t *testing.T) {
	l := newTestLogger(t)
	ctx := context.Background()

	rec := domain.NewAuditRecord("sess-1", 1, time.Now())
	rec.Decision = domain.Decision{State: domain.StateAccept}
	require.NoError(t, l.Log(ctx, rec))

	require.NoError(t, l.Flush(ctx))

	path := filepath.Join(l.logDir, "summary_sess-1.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var summary domain.SessionSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "sess-1", summary.SessionID)
	assert.Equal(t, uint64(1), summary.TotalDatagrams)
}

func TestLogger_DegradedSinkDoesNotPanic(t *testing.T) {
	l := newTestLogger(t)
	require.NoError(t, l.Close())

	rec := domain.NewAuditRecord("sess-1", 1, time.Now())
	rec.Decision = domain.Decision{State: domain.StateAccept}
	err := l.Log(context.Background(), rec)
	assert.Error(t, err)
}
