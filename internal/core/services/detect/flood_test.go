package detect

import (
	"testing"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestFloodDetector_QuietTrafficNoFlood(t *testing.T) {
	f := NewFloodDetector()
	base := time.Now()
	var v = f.Observe(base)
	v = f.Observe(base.Add(2 * time.Second))
	v = f.Observe(base.Add(4 * time.Second))
	require.False(t, v.IsFlood)
}

func TestFloodDetector_BurstTriggersHighConfidence(t *testing.T) {
	f := NewFloodDetector()
	base := time.Now()
	var v domain.FloodVerdict
	for i := 0; i < 60; i++ {
		v = f.Observe(base.Add(time.Duration(i) * time.Millisecond))
	}
	require.True(t, v.IsFlood)
	require.GreaterOrEqual(t, v.Confidence, 0.95)
}

func TestFloodDetector_SustainedLoadTriggersModerateConfidence(t *testing.T) {
	f := NewFloodDetector()
	base := time.Now()
	var v domain.FloodVerdict
	// ~25 events/sec sustained evenly across the 10s window, no 1s burst.
	for i := 0; i < 250; i++ {
		v = f.Observe(base.Add(time.Duration(i) * 40 * time.Millisecond))
	}
	require.True(t, v.IsFlood)
}

func TestFloodDetector_Reset_ClearsWindow(t *testing.T) {
	f := NewFloodDetector()
	base := time.Now()
	for i := 0; i < 60; i++ {
		f.Observe(base.Add(time.Duration(i) * time.Millisecond))
	}
	f.Reset()
	v := f.Observe(base.Add(time.Minute))
	require.False(t, v.IsFlood)
}
