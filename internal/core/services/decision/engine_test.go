package decision

import (
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestEngine_CleanInputsAccept(t *testing.T) {
	e := New(DefaultWeights)
	d := e.Decide(domain.RiskInputs{})
	require.Equal(t, domain.StateAccept, d.State)
	require.Equal(t, domain.SeverityNone, d.Severity)
}

func TestEngine_SeverityStateMapping(t *testing.T) {
	e := New(DefaultWeights)
	cases := []struct {
		risk  float64
		state domain.DecisionState
	}{
		{0.1, domain.StateAccept},
		{0.4, domain.StateAccept},
		{0.6, domain.StateConstrain},
		{0.8, domain.StateHold},
		{0.95, domain.StateRTL},
	}
	for _, c := range cases {
		d := e.Decide(domain.RiskInputs{BehaviorAnomaly: c.risk / DefaultWeights.Behavior})
		require.Equal(t, c.state, d.State, "risk=%v", c.risk)
	}
}

func TestEngine_GeofenceViolationFloorsAtHighBand(t *testing.T) {
	e := New(DefaultWeights)
	d := e.Decide(domain.RiskInputs{GeofenceViolation: true})
	require.GreaterOrEqual(t, d.TotalRisk, 0.85)
	require.Equal(t, domain.StateHold, d.State)
}

func TestEngine_InvalidCryptoFloorsAtHigh(t *testing.T) {
	e := New(DefaultWeights)
	d := e.Decide(domain.RiskInputs{CryptoInvalid: 1.0})
	require.GreaterOrEqual(t, d.TotalRisk, 0.70)
	require.Equal(t, domain.StateHold, d.State)
}

func TestEngine_TotalRiskMonotoneInEachInput(t *testing.T) {
	e := New(DefaultWeights)
	base := e.Decide(domain.RiskInputs{})
	increased := e.Decide(domain.RiskInputs{TrajectoryRisk: 0.5})
	require.GreaterOrEqual(t, increased.TotalRisk, base.TotalRisk)

	moreIntent := e.Decide(domain.RiskInputs{TrajectoryRisk: 0.5, IntentMismatch: 0.5})
	require.GreaterOrEqual(t, moreIntent.TotalRisk, increased.TotalRisk)
}

func TestEngine_WeightsSumToOne(t *testing.T) {
	sum := DefaultWeights.Crypto + DefaultWeights.Intent + DefaultWeights.Behavior +
		DefaultWeights.Trajectory + DefaultWeights.MLIntent
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestEngine_RiskClippedToUnitRange(t *testing.T) {
	e := New(DefaultWeights)
	d := e.Decide(domain.RiskInputs{
		CryptoInvalid:   1.0,
		IntentMismatch:  1.0,
		BehaviorAnomaly: 1.0,
		TrajectoryRisk:  1.0,
		MLIntentRisk:    1.0,
	})
	require.LessOrEqual(t, d.TotalRisk, 1.0)
	require.Equal(t, domain.StateRTL, d.State)
}

func TestEngine_ContributingFactorsOmitNegligibleInputs(t *testing.T) {
	e := New(DefaultWeights)
	d := e.Decide(domain.RiskInputs{TrajectoryRisk: 0.5})
	require.NotEmpty(t, d.ContributingFactors)
	for _, f := range d.ContributingFactors {
		require.Greater(t, f.Weight*f.Value, 0.02)
	}
}
