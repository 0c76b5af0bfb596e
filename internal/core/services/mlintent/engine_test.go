package mlintent

import (
	"context"
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/services/features"
	"github.com/stretchr/testify/require"
)

func TestEngine_UnavailableFeatureVectorFallsBack(t *testing.T) {
	e := New()
	res := e.Predict(context.Background(), nil)
	require.Equal(t, "fallback", res.ModelStatus)
	require.Equal(t, fallbackRisk, res.RiskScore)
	require.Equal(t, 0.0, res.Confidence)
}

func TestEngine_CancelledContextFallsBackWithTimeoutReason(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Predict(ctx, make([]float64, features.NumFeatures))
	require.Equal(t, "fallback", res.ModelStatus)
	require.Equal(t, "timeout", res.FallbackReason)
}

func TestEngine_QuietVectorIsLowRiskUnknown(t *testing.T) {
	e := New()
	feats := make([]float64, features.NumFeatures)
	feats[34] = 1.0 // mode_context_match: command fits the current mode
	res := e.Predict(context.Background(), feats)
	require.Equal(t, "ok", res.ModelStatus)
	require.Equal(t, domain.IntentUnknown, res.Intent)
	require.Less(t, res.RiskScore, 0.5)
}

func TestEngine_HighAltitudeLowBatteryFiresAbortStumps(t *testing.T) {
	e := New()
	feats := make([]float64, features.NumFeatures)
	feats[31] = 1.0 // is_high_altitude
	feats[32] = 1.0 // is_low_battery
	feats[36] = 1.0 // risk_context_flag
	res := e.Predict(context.Background(), feats)
	require.True(t, res.ModelStatus == "ok" || res.ModelStatus == "fallback")
	if res.ModelStatus == "ok" {
		require.Equal(t, domain.IntentAbort, res.Intent)
	}
}

func TestEngine_ContributionsAreSortedBySignedMagnitude(t *testing.T) {
	e := New()
	feats := make([]float64, features.NumFeatures)
	feats[31] = 1.0
	feats[32] = 1.0
	feats[36] = 1.0
	res := e.Predict(context.Background(), feats)
	for i := 1; i < len(res.TopContributions); i++ {
		require.GreaterOrEqual(t, abs(res.TopContributions[i-1].Contribution), abs(res.TopContributions[i].Contribution))
	}
	require.LessOrEqual(t, len(res.TopContributions), topContributions)
}
