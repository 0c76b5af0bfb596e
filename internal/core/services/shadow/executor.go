// Package shadow implements the Shadow Executor (spec §4.11): a
// short-horizon kinematic projector that predicts the vehicle's near-term
// trajectory before a command is allowed to reach the flight controller,
// and scores the risk of letting it through. Grounded on
// original_source/src/ai_layer/shadow_executor.py (haversine_distance,
// predict_position, check_geofence_violation, predict_trajectory_risk).
// This is projection, not physics: linear interpolation for position
// commands, dead-reckoning for velocity commands, same as the original.
package shadow

import (
	"math"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.ShadowExecutor = (*Executor)(nil)

const (
	earthRadiusM       = 6371000.0
	metersPerDegreeLat = 111000.0
	horizonSec         = 10.0
	sampleStepSec       = 1.0
	urgentWindowSec     = 5.0
)

// Executor predicts the short-horizon trajectory implied by a command and
// scores its risk against a geofence and kinematic limits.
type Executor struct {
	fence  domain.GeofenceConfig
	limits domain.KinematicLimits
}

func New(fence domain.GeofenceConfig, limits domain.KinematicLimits) *Executor {
	return &Executor{fence: fence, limits: limits}
}

// Predict projects the vehicle's trajectory under the given command over
// a short horizon and accumulates a weighted risk score (spec §4.11).
func (e *Executor) Predict(state domain.VehicleState, cmd domain.ParsedCommand) domain.ShadowResult {
	outcomes := make([]domain.PredictedOutcome, 0, int(horizonSec/sampleStepSec)+1)
	timeToViolation := -1.0
	var risk float64

	for t := 0.0; t <= horizonSec; t += sampleStepSec {
		lat, lon, alt := predictPosition(state, cmd, t)
		velViolation := checkVelocityViolation(e.limits, state, cmd)
		altViolation := alt < e.fence.MinAltM || alt > e.fence.MaxAltM
		// The geofence is a volume: horizontal radius plus the absolute
		// altitude band, so an altitude breach is a geofence breach.
		geoViolation := checkGeofenceViolation(e.fence, lat, lon, alt) || altViolation

		energy := state.EnergyMarginBucket()

		outcome := domain.PredictedOutcome{
			TimeOffsetSec:     t,
			Lat:               lat,
			Lon:               lon,
			Alt:               alt,
			GeofenceViolation: geoViolation,
			VelocityViolation: velViolation,
			AltitudeViolation: altViolation,
			Energy:            energy,
		}
		outcomes = append(outcomes, outcome)

		if (geoViolation || altViolation) && timeToViolation < 0 {
			timeToViolation = t
		}

		if geoViolation {
			if t <= urgentWindowSec {
				risk += 0.5
			} else {
				risk += 0.3
			}
		}
		if altViolation {
			risk += 0.3
		}
		if velViolation {
			risk += 0.2
		}
		switch energy {
		case domain.EnergyCritical:
			risk += 0.4
		case domain.EnergyLow:
			risk += 0.2
		}
		if lossOfControl(state, cmd) {
			risk += 0.3
		}
	}

	if risk > 1.0 {
		risk = 1.0
	}

	return domain.ShadowResult{
		TrajectoryRisk:     risk,
		Outcomes:           outcomes,
		TimeToViolationSec: timeToViolation,
	}
}

// predictPosition mirrors shadow_executor.py's predict_position: linear
// interpolation toward a commanded lat/lon/alt, or dead-reckoning from
// current velocity when the command carries no absolute target.
func predictPosition(state domain.VehicleState, cmd domain.ParsedCommand, t float64) (lat, lon, alt float64) {
	targetLat, hasLat := cmd.ParamFloat("latitude")
	targetLon, hasLon := cmd.ParamFloat("longitude")
	targetAlt, hasAlt := cmd.ParamFloat("altitude")

	if hasLat && hasLon {
		alpha := t / 5.0
		if alpha > 1.0 {
			alpha = 1.0
		}
		lat = state.Latitude + (targetLat-state.Latitude)*alpha
		lon = state.Longitude + (targetLon-state.Longitude)*alpha
		if hasAlt {
			alt = state.AltitudeAGL + (targetAlt-state.AltitudeAGL)*alpha
		} else {
			alt = state.AltitudeAGL
		}
		return lat, lon, alt
	}

	// Dead reckoning from current velocity.
	vx, _ := cmd.ParamFloat("vx")
	vy, _ := cmd.ParamFloat("vy")
	vz, _ := cmd.ParamFloat("vz")
	if vx == 0 && vy == 0 && vz == 0 {
		vx, vy, vz = state.HorizontalVelo, 0, state.VerticalVelo
	}

	metersPerDegreeLon := metersPerDegreeLat * math.Cos(state.Latitude*math.Pi/180)
	if metersPerDegreeLon == 0 {
		metersPerDegreeLon = metersPerDegreeLat
	}

	lat = state.Latitude + (vy*t)/metersPerDegreeLat
	lon = state.Longitude + (vx*t)/metersPerDegreeLon
	alt = state.AltitudeAGL + vz*t
	return lat, lon, alt
}

// haversineDistance mirrors shadow_executor.py's haversine_distance.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

func checkGeofenceViolation(fence domain.GeofenceConfig, lat, lon, alt float64) bool {
	if fence.RadiusM <= 0 {
		return false
	}
	d := haversineDistance(fence.CenterLat, fence.CenterLon, lat, lon)
	return d > fence.RadiusM
}

func checkVelocityViolation(limits domain.KinematicLimits, state domain.VehicleState, cmd domain.ParsedCommand) bool {
	vx, hasVx := cmd.ParamFloat("vx")
	vy, hasVy := cmd.ParamFloat("vy")
	vz, hasVz := cmd.ParamFloat("vz")
	horiz := state.HorizontalVelo
	vert := state.VerticalVelo
	if hasVx || hasVy {
		horiz = math.Hypot(vx, vy)
	}
	if hasVz {
		vert = vz
	}
	if limits.MaxHorizontalVelo > 0 && horiz > limits.MaxHorizontalVelo {
		return true
	}
	if limits.MaxVerticalVelo > 0 && math.Abs(vert) > limits.MaxVerticalVelo {
		return true
	}
	return false
}

// lossOfControl flags a manual-control command issued while the vehicle
// is already at its kinematic limits, mirroring the original's
// loss_of_control heuristic.
func lossOfControl(state domain.VehicleState, cmd domain.ParsedCommand) bool {
	if cmd.Kind != domain.KindManual {
		return false
	}
	return state.HorizontalVelo > 15 || math.Abs(state.VerticalVelo) > 5
}
