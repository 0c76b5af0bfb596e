package intent

import (
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestFirewall_NavigationDuringMissionMatches(t *testing.T) {
	f := New()
	f.UpdateState(domain.VehicleState{MissionPhase: domain.PhaseMission})

	cmd := domain.ParsedCommand{
		Kind:   domain.KindNavigation,
		Params: map[string]domain.ParamValue{"altitude": domain.NumParam(30)},
	}
	res := f.Analyze(cmd)
	require.Equal(t, domain.IntentNavigation, res.Intent)
	require.False(t, res.Mismatch)
	require.GreaterOrEqual(t, res.Confidence, 0.6)
}

func TestFirewall_ParameterChangeDuringCruiseMismatches(t *testing.T) {
	f := New()
	f.UpdateState(domain.VehicleState{MissionPhase: domain.PhaseCruise})

	cmd := domain.ParsedCommand{Kind: domain.KindParameterChange, Params: map[string]domain.ParamValue{}}
	res := f.Analyze(cmd)
	require.Equal(t, domain.IntentParameterChange, res.Intent)
	require.True(t, res.Mismatch)
}

func TestFirewall_AbortAlwaysMatchesAnyPhase(t *testing.T) {
	f := New()
	f.UpdateState(domain.VehicleState{MissionPhase: domain.PhaseTakeoff})

	cmd := domain.ParsedCommand{Kind: domain.KindEmergency, Params: map[string]domain.ParamValue{}}
	res := f.Analyze(cmd)
	require.Equal(t, domain.IntentAbort, res.Intent)
	require.False(t, res.Mismatch)
	require.Equal(t, 0.95, res.Confidence)
}

func TestFirewall_UnknownKindLowConfidenceMismatch(t *testing.T) {
	f := New()
	f.UpdateState(domain.VehicleState{MissionPhase: domain.PhaseMission})

	cmd := domain.ParsedCommand{Kind: domain.KindUnknown, Params: map[string]domain.ParamValue{}}
	res := f.Analyze(cmd)
	require.Equal(t, domain.IntentUnknown, res.Intent)
	require.Less(t, res.Confidence, 0.6)
	require.True(t, res.Mismatch)
}

func TestFirewall_ExpectedIntentsReflectsPhaseTable(t *testing.T) {
	f := New()
	f.UpdateState(domain.VehicleState{MissionPhase: domain.PhaseLanding})

	cmd := domain.ParsedCommand{Kind: domain.KindTakeoffLand, Params: map[string]domain.ParamValue{
		"command": domain.TextParam("land"),
	}}
	res := f.Analyze(cmd)
	require.Equal(t, domain.IntentLanding, res.Intent)
	require.Contains(t, res.ExpectedIntents, domain.IntentLanding)
}
