package detect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.InjectionDetectorService = (*InjectionDetector)(nil)

// FlightState is the coarse authorization state the Injection Detector
// keys its per-state command whitelist on (spec §4.7 layer 1), derived
// from VehicleState rather than mirrored as a separate input.
type FlightState string

const (
	StateDisarmed    FlightState = "disarmed"
	StateArmedGround FlightState = "armed-ground"
	StateTakingOff   FlightState = "taking-off"
	StateInFlight    FlightState = "in-flight"
	StateLanding     FlightState = "landing"
	StateEmergency   FlightState = "emergency"
)

// DeriveFlightState maps the gateway's VehicleState onto the closed
// FlightState set the authorization table is keyed on.
func DeriveFlightState(vs domain.VehicleState) FlightState {
	if !vs.Armed {
		return StateDisarmed
	}
	switch vs.MissionPhase {
	case domain.PhaseTakeoff:
		return StateTakingOff
	case domain.PhaseLanding:
		return StateLanding
	case domain.PhaseCruise, domain.PhaseMission, domain.PhaseReturn:
		return StateInFlight
	default:
		return StateArmedGround
	}
}

var authorizedCommands = map[FlightState]map[domain.CommandKind]bool{
	StateDisarmed: set(domain.KindArmDisarm, domain.KindModeChange, domain.KindParameterChange,
		domain.KindMissionUpdate, domain.KindTelemetryRequest),
	StateArmedGround: set(domain.KindArmDisarm, domain.KindTakeoffLand, domain.KindModeChange,
		domain.KindEmergency, domain.KindTelemetryRequest),
	StateTakingOff: set(domain.KindNavigation, domain.KindModeChange, domain.KindEmergency,
		domain.KindTelemetryRequest),
	StateInFlight: set(domain.KindNavigation, domain.KindModeChange, domain.KindTakeoffLand,
		domain.KindEmergency, domain.KindMissionUpdate, domain.KindTelemetryRequest),
	StateLanding: set(domain.KindNavigation, domain.KindTakeoffLand, domain.KindEmergency,
		domain.KindTelemetryRequest),
	StateEmergency: set(domain.KindEmergency, domain.KindTakeoffLand, domain.KindArmDisarm,
		domain.KindTelemetryRequest),
}

func set(kinds ...domain.CommandKind) map[domain.CommandKind]bool {
	m := make(map[domain.CommandKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

type bound struct{ min, max float64 }

var parameterBounds = map[string]bound{
	"altitude": {0.0, 150.0},
	"velocity": {0.0, 25.0},
	"latitude": {-90.0, 90.0},
	"longitude": {-180.0, 180.0},
	"yaw":       {-180.0, 180.0},
	"pitch":     {-90.0, 90.0},
	"roll":      {-45.0, 45.0},
	"throttle":  {0.0, 1.0},
}

var criticalKinds = map[domain.CommandKind]bool{
	domain.KindArmDisarm:       true,
	domain.KindModeChange:      true,
	domain.KindParameterChange: true,
	domain.KindEmergency:       true,
}

// InjectionDetector implements the five stacked checks of spec §4.7,
// grounded on
// original_source/src/ai_layer/attack_detection/injection_detector.py
// for the literal bounds/context/privilege tables.
type InjectionDetector struct {
	mu            sync.Mutex
	state         FlightState
	missionActive bool
}

func NewInjectionDetector() *InjectionDetector {
	return &InjectionDetector{state: StateDisarmed}
}

// UpdateState refreshes the vehicle state the authorization and context
// checks are evaluated against.
func (d *InjectionDetector) UpdateState(vs domain.VehicleState, emergency bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if emergency {
		d.state = StateEmergency
	} else {
		d.state = DeriveFlightState(vs)
	}
	d.missionActive = vs.MissionActive
}

// Check runs the five stacked checks and aggregates them per the
// first-match-decisive table in spec §4.7.
func (d *InjectionDetector) Check(cmd domain.ParsedCommand, sourceAuthenticated bool, mlRiskScore float64) domain.InjectionMetrics {
	d.mu.Lock()
	state := d.state
	missionActive := d.missionActive
	d.mu.Unlock()

	unauthorized := checkAuthorization(state, cmd.Kind)
	paramAnomaly, violations := checkParameters(cmd)
	contextViolation, contextReason := checkContext(state, missionActive, cmd)
	privilegeEsc := checkPrivilegeEscalation(cmd.Kind, sourceAuthenticated)
	semanticAnomaly := mlRiskScore > 0.7

	return aggregate(state, unauthorized, paramAnomaly, contextViolation, privilegeEsc,
		semanticAnomaly, violations, contextReason, mlRiskScore)
}

func checkAuthorization(state FlightState, kind domain.CommandKind) bool {
	if kind == domain.KindUnknown {
		return false
	}
	allowed := authorizedCommands[state]
	return !allowed[kind]
}

func checkParameters(cmd domain.ParsedCommand) (bool, []string) {
	var violations []string
	for name, v := range cmd.Params {
		b, ok := parameterBounds[name]
		if !ok {
			continue
		}
		if v.IsText {
			violations = append(violations, fmt.Sprintf("%s has non-numeric value", name))
			continue
		}
		if v.Number < b.min || v.Number > b.max {
			violations = append(violations, fmt.Sprintf("%s=%.2f out of bounds [%.2f, %.2f]", name, v.Number, b.min, b.max))
		}
	}
	return len(violations) > 0, violations
}

func checkContext(state FlightState, missionActive bool, cmd domain.ParsedCommand) (bool, string) {
	if cmd.Kind == domain.KindArmDisarm && state == StateInFlight {
		if v, ok := cmd.Params["arm"]; ok && !v.IsText && v.Number == 0 {
			return true, "attempting to disarm while in flight (crash risk)"
		}
	}
	if cmd.Kind == domain.KindModeChange && state == StateLanding {
		return true, "mode change during landing (unsafe)"
	}
	if cmd.Kind == domain.KindTakeoffLand && state == StateInFlight {
		if v, ok := cmd.Params["command"]; ok {
			isTakeoff := (v.IsText && strings.EqualFold(v.Text, "takeoff")) ||
				(!v.IsText && uint16(v.Number) == 22) // MAV_CMD_NAV_TAKEOFF
			if isTakeoff {
				return true, "takeoff command while already airborne"
			}
		}
	}
	if cmd.Kind == domain.KindMissionUpdate && missionActive {
		return true, "mission upload during active mission (risky)"
	}
	return false, "context valid"
}

func checkPrivilegeEscalation(kind domain.CommandKind, authenticated bool) bool {
	return criticalKinds[kind] && !authenticated
}

func aggregate(state FlightState, unauthorized, paramAnomaly, contextViolation, privilegeEsc,
	semanticAnomaly bool, violations []string, contextReason string, mlRisk float64) domain.InjectionMetrics {

	risk := 0.0
	var factors []string
	if unauthorized {
		risk += 0.3
		factors = append(factors, "unauthorized command")
	}
	if paramAnomaly {
		risk += 0.2
		factors = append(factors, "parameter violations: "+strings.Join(violations, ", "))
	}
	if contextViolation {
		risk += 0.3
		factors = append(factors, "context violation: "+contextReason)
	}
	if privilegeEsc {
		risk += 0.4
		factors = append(factors, "privilege escalation")
	}
	if semanticAnomaly {
		risk += mlRisk * 0.3
		factors = append(factors, fmt.Sprintf("semantic anomaly (ml risk=%.2f)", mlRisk))
	}
	risk = clipUnit(risk)

	base := domain.InjectionMetrics{
		UnauthorizedCommand: unauthorized,
		ParameterAnomaly:    paramAnomaly,
		ContextViolation:    contextViolation,
		PrivilegeEscalation: privilegeEsc,
		SemanticAnomaly:     semanticAnomaly,
		RiskScore:           risk,
	}

	switch {
	case privilegeEsc || (contextViolation && unauthorized):
		base.IsInjection, base.Confidence, base.DetectionMethod = true, 0.95, "privilege_context"
		base.Explanation = "critical injection: " + strings.Join(factors, "; ")
	case contextViolation:
		base.IsInjection, base.Confidence, base.DetectionMethod = true, 0.85, "context"
		base.Explanation = contextReason
	case unauthorized && paramAnomaly:
		base.IsInjection, base.Confidence, base.DetectionMethod = true, 0.80, "unauthorized_params"
		base.Explanation = "unauthorized command with bad params: " + strings.Join(factors, "; ")
	case paramAnomaly && len(violations) >= 2:
		base.IsInjection, base.Confidence, base.DetectionMethod = true, 0.70, "parameters"
		base.Explanation = "multiple parameter violations: " + strings.Join(violations, ", ")
	case unauthorized:
		base.IsInjection, base.Confidence, base.DetectionMethod = true, 0.65, "unauthorized"
		base.Explanation = fmt.Sprintf("command not authorized in %s state", state)
	case semanticAnomaly:
		base.IsInjection, base.Confidence, base.DetectionMethod = true, 0.60, "semantic"
		base.Explanation = fmt.Sprintf("ml-based anomaly detected (risk=%.2f)", mlRisk)
	default:
		base.IsInjection, base.Confidence, base.DetectionMethod = false, 0.0, "none"
		base.Explanation = "no injection detected"
	}
	return base
}
