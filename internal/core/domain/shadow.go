package domain

// GeofenceConfig is required whenever the shadow executor is enabled
// (spec §9: "treat these as required config keys with no implicit
// defaults in production").
type GeofenceConfig struct {
	CenterLat float64
	CenterLon float64
	RadiusM   float64
	MinAltM   float64
	MaxAltM   float64
}

// KinematicLimits bound velocity/acceleration for trajectory risk scoring
// (spec §4.11).
type KinematicLimits struct {
	MaxHorizontalVelo float64
	MaxVerticalVelo   float64
	MaxAccel          float64
}

// PredictedOutcome is one sampled instant of the shadow trajectory.
type PredictedOutcome struct {
	TimeOffsetSec       float64
	Lat, Lon, Alt       float64
	GeofenceViolation   bool
	VelocityViolation   bool
	AltitudeViolation   bool
	Energy              EnergyMargin
}

// ShadowResult is the Shadow Executor's output (spec §4.11).
type ShadowResult struct {
	TrajectoryRisk float64
	Outcomes       []PredictedOutcome
	TimeToViolationSec float64 // -1 if no violation predicted
}
