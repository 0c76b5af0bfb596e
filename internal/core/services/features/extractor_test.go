package features

import (
	"math"
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func cmdAt(nanos int64, kind domain.CommandKind) domain.ParsedCommand {
	return domain.ParsedCommand{
		Kind:          kind,
		IngressTimeNS: nanos,
		Params:        map[string]domain.ParamValue{"param1": domain.NumParam(10)},
	}
}

func TestExtractor_FewerThanTwoCommandsReturnsNotOK(t *testing.T) {
	e := New(7)
	_, ok := e.Observe(cmdAt(0, domain.KindNavigation), domain.VehicleState{})
	require.False(t, ok)
}

func TestExtractor_EmitsFullLengthVectorOnceBuffered(t *testing.T) {
	e := New(7)
	e.Observe(cmdAt(0, domain.KindNavigation), domain.VehicleState{Battery: 0.8})
	out, ok := e.Observe(cmdAt(1e9, domain.KindNavigation), domain.VehicleState{Battery: 0.8})
	require.True(t, ok)
	require.Len(t, out, NumFeatures)
	for _, v := range out {
		require.False(t, math.IsNaN(v))
		require.False(t, math.IsInf(v, 0))
		require.GreaterOrEqual(t, v, -1.0)
		require.LessOrEqual(t, v, 1.0)
	}
}

func TestExtractor_WindowEvictsOldestBeyondCapacity(t *testing.T) {
	e := New(3)
	for i := int64(0); i < 10; i++ {
		e.Observe(cmdAt(i*int64(1e9), domain.KindNavigation), domain.VehicleState{Battery: 0.8})
	}
	require.LessOrEqual(t, len(e.window), 3)
}

func TestExtractor_BurstTrafficSetsBurstFlag(t *testing.T) {
	e := New(7)
	base := int64(0)
	var out []float64
	for i := 0; i < 8; i++ {
		out, _ = e.Observe(cmdAt(base+int64(i)*int64(10*1e6), domain.KindNavigation), domain.VehicleState{Battery: 0.8})
	}
	// burst_detected is the last temporal feature, index 10+15-1 = 24.
	require.Equal(t, 1.0, out[24])
}

func TestExtractor_ResetClearsWindow(t *testing.T) {
	e := New(7)
	e.Observe(cmdAt(0, domain.KindNavigation), domain.VehicleState{})
	e.Observe(cmdAt(1e9, domain.KindNavigation), domain.VehicleState{})
	e.Reset()
	_, ok := e.Observe(cmdAt(2e9, domain.KindNavigation), domain.VehicleState{})
	require.False(t, ok)
}
