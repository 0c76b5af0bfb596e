package shadow

import (
	"testing"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func defaultFence() domain.GeofenceConfig {
	return domain.GeofenceConfig{CenterLat: 47.6, CenterLon: -122.3, RadiusM: 500, MinAltM: 0, MaxAltM: 120}
}

func defaultLimits() domain.KinematicLimits {
	return domain.KinematicLimits{MaxHorizontalVelo: 20, MaxVerticalVelo: 8, MaxAccel: 5}
}

func TestExecutor_BenignNavigationNoViolation(t *testing.T) {
	e := New(defaultFence(), defaultLimits())
	state := domain.VehicleState{Latitude: 47.6, Longitude: -122.3, AltitudeAGL: 25, Battery: 0.8}
	cmd := domain.ParsedCommand{
		Kind: domain.KindNavigation,
		Params: map[string]domain.ParamValue{
			"latitude":  domain.NumParam(47.6004),
			"longitude": domain.NumParam(-122.3003),
			"altitude":  domain.NumParam(30),
		},
	}
	res := e.Predict(state, cmd)
	require.Equal(t, -1.0, res.TimeToViolationSec)
	require.Less(t, res.TrajectoryRisk, 0.3)
}

func TestExecutor_TargetOutsideGeofenceFlagsViolation(t *testing.T) {
	e := New(defaultFence(), defaultLimits())
	state := domain.VehicleState{Latitude: 47.6, Longitude: -122.3, AltitudeAGL: 25, Battery: 0.8}
	cmd := domain.ParsedCommand{
		Kind: domain.KindNavigation,
		Params: map[string]domain.ParamValue{
			"latitude":  domain.NumParam(48.5),
			"longitude": domain.NumParam(-122.3),
			"altitude":  domain.NumParam(30),
		},
	}
	res := e.Predict(state, cmd)
	require.GreaterOrEqual(t, res.TrajectoryRisk, 0.3)
	require.NotEqual(t, -1.0, res.TimeToViolationSec)

	var anyViolation bool
	for _, o := range res.Outcomes {
		if o.GeofenceViolation {
			anyViolation = true
		}
	}
	require.True(t, anyViolation)
}

func TestExecutor_LowBatteryIncreasesRisk(t *testing.T) {
	e := New(defaultFence(), defaultLimits())
	cmd := domain.ParsedCommand{
		Kind: domain.KindNavigation,
		Params: map[string]domain.ParamValue{
			"latitude":  domain.NumParam(47.6004),
			"longitude": domain.NumParam(-122.3003),
			"altitude":  domain.NumParam(30),
		},
	}
	healthy := e.Predict(domain.VehicleState{Latitude: 47.6, Longitude: -122.3, AltitudeAGL: 25, Battery: 0.8}, cmd)
	critical := e.Predict(domain.VehicleState{Latitude: 47.6, Longitude: -122.3, AltitudeAGL: 25, Battery: 0.1}, cmd)
	require.Greater(t, critical.TrajectoryRisk, healthy.TrajectoryRisk)
}

func TestExecutor_ManualControlAtHighSpeedIsLossOfControl(t *testing.T) {
	e := New(defaultFence(), defaultLimits())
	state := domain.VehicleState{Latitude: 47.6, Longitude: -122.3, AltitudeAGL: 25, Battery: 0.8, HorizontalVelo: 18}
	cmd := domain.ParsedCommand{Kind: domain.KindManual, Params: map[string]domain.ParamValue{}}
	res := e.Predict(state, cmd)
	require.Greater(t, res.TrajectoryRisk, 0.0)
}

func TestExecutor_ExcessiveAltitudeExceedsFenceCeiling(t *testing.T) {
	e := New(defaultFence(), defaultLimits())
	state := domain.VehicleState{Latitude: 47.6, Longitude: -122.3, AltitudeAGL: 25, Battery: 0.8}
	cmd := domain.ParsedCommand{
		Kind: domain.KindNavigation,
		Params: map[string]domain.ParamValue{
			"latitude":  domain.NumParam(47.6001),
			"longitude": domain.NumParam(-122.3001),
			"altitude":  domain.NumParam(500),
		},
	}
	res := e.Predict(state, cmd)
	var anyAltViolation bool
	for _, o := range res.Outcomes {
		if o.AltitudeViolation {
			anyAltViolation = true
		}
	}
	require.True(t, anyAltViolation)
}
