package detect

import (
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestInjectionDetector_DisarmInFlight(t *testing.T) {
	d := NewInjectionDetector()
	d.UpdateState(domain.VehicleState{Armed: true, MissionPhase: domain.PhaseCruise, AltitudeAGL: 50}, false)

	cmd := domain.ParsedCommand{
		Kind:   domain.KindArmDisarm,
		Params: map[string]domain.ParamValue{"arm": domain.NumParam(0)},
	}
	m := d.Check(cmd, true, 0)
	require.True(t, m.IsInjection)
	require.True(t, m.ContextViolation)
	require.GreaterOrEqual(t, m.Confidence, 0.85)
}

func TestInjectionDetector_ExtremeAltitudeParameter(t *testing.T) {
	d := NewInjectionDetector()
	d.UpdateState(domain.VehicleState{Armed: true, MissionPhase: domain.PhaseCruise}, false)

	cmd := domain.ParsedCommand{
		Kind:   domain.KindNavigation,
		Params: map[string]domain.ParamValue{"altitude": domain.NumParam(500)},
	}
	m := d.Check(cmd, true, 0)
	require.True(t, m.ParameterAnomaly)
	require.Greater(t, m.RiskScore, 0.0)
}

func TestInjectionDetector_PrivilegeEscalationUnauthenticated(t *testing.T) {
	d := NewInjectionDetector()
	d.UpdateState(domain.VehicleState{Armed: false}, false)

	cmd := domain.ParsedCommand{Kind: domain.KindArmDisarm, Params: map[string]domain.ParamValue{}}
	m := d.Check(cmd, false, 0)
	require.True(t, m.PrivilegeEscalation)
	require.True(t, m.IsInjection)
	require.Equal(t, 0.95, m.Confidence)
}

func TestInjectionDetector_NoViolationIsClean(t *testing.T) {
	d := NewInjectionDetector()
	d.UpdateState(domain.VehicleState{Armed: true, MissionPhase: domain.PhaseCruise}, false)

	cmd := domain.ParsedCommand{
		Kind:   domain.KindNavigation,
		Params: map[string]domain.ParamValue{"altitude": domain.NumParam(30)},
	}
	m := d.Check(cmd, true, 0)
	require.False(t, m.IsInjection)
	require.Equal(t, 0.0, m.RiskScore)
}

func TestInjectionDetector_MonotoneInTriggerCount(t *testing.T) {
	d := NewInjectionDetector()
	d.UpdateState(domain.VehicleState{Armed: true, MissionPhase: domain.PhaseCruise}, false)

	clean := d.Check(domain.ParsedCommand{
		Kind:   domain.KindNavigation,
		Params: map[string]domain.ParamValue{"altitude": domain.NumParam(30)},
	}, true, 0)

	withBadParam := d.Check(domain.ParsedCommand{
		Kind: domain.KindNavigation,
		Params: map[string]domain.ParamValue{
			"altitude": domain.NumParam(500),
			"velocity": domain.NumParam(100),
		},
	}, true, 0)

	require.GreaterOrEqual(t, withBadParam.RiskScore, clean.RiskScore)
}
