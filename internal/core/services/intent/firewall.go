// Package intent implements the rule-based, mission-phase-aware Intent
// Firewall (spec §4.8), grounded on
// original_source/src/ai_layer/intent_firewall.py (IntentFirewall's
// infer_intent/calculate_confidence/validate_intent pipeline), remapped
// onto spec §3's normative closed IntentClass set: the original's RETURN
// and EMERGENCY intents both collapse into IntentAbort here (the
// original's own docstring describes RETURN as "RTL, coming home, abort
// sequences", i.e. abort by another name), SURVEY folds into
// IntentNavigation, and OVERRIDE/MANUAL_CONTROL both become
// IntentManualOverride, since spec §3 fixes the class set as closed and
// does not carry SURVEY/OVERRIDE as distinct members.
package intent

import (
	"strings"
	"sync"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.IntentFirewall = (*Firewall)(nil)

const historyLen = 10

// Firewall infers intent from (command-kind, parameters, recent command
// history, current vehicle state) and validates it against the
// mission-phase expected-intent table (spec §4.8).
type Firewall struct {
	mu      sync.Mutex
	state   domain.VehicleState
	history []domain.CommandKind
}

func New() *Firewall {
	return &Firewall{state: domain.VehicleState{MissionPhase: domain.PhaseIdle}}
}

// UpdateState refreshes the vehicle state snapshot the firewall reasons
// over. VehicleState.MissionPhase is the gateway's single-writer view
// (spec §3); the firewall never re-derives phase on its own.
func (f *Firewall) UpdateState(state domain.VehicleState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

// expectedIntents is the fixed table of spec §4.8, remapped from
// intent_firewall.py's get_expected_intents onto the closed IntentClass
// set.
var expectedIntents = map[domain.MissionPhase][]domain.IntentClass{
	domain.PhaseIdle:      {domain.IntentParameterChange, domain.IntentAbort, domain.IntentArmDisarm},
	domain.PhasePreFlight: {domain.IntentParameterChange, domain.IntentAbort, domain.IntentArmDisarm},
	domain.PhaseTakeoff:   {domain.IntentNavigation, domain.IntentAbort, domain.IntentLanding},
	domain.PhaseCruise:    {domain.IntentNavigation, domain.IntentManualOverride, domain.IntentAbort},
	domain.PhaseMission:   {domain.IntentNavigation, domain.IntentMissionUpdate, domain.IntentAbort},
	domain.PhaseReturn:    {domain.IntentAbort, domain.IntentLanding},
	domain.PhaseLanding:   {domain.IntentAbort, domain.IntentLanding},
}

// baseConfidence mirrors intent_firewall.py's calculate_confidence base
// table, remapped onto the closed class set (spec §4.8: "RTL, emergency:
// 0.95; navigation: 0.75; unknown: 0.30").
var baseConfidence = map[domain.IntentClass]float64{
	domain.IntentAbort:           0.95,
	domain.IntentLanding:         0.95,
	domain.IntentManualOverride:  0.90,
	domain.IntentParameterChange: 0.85,
	domain.IntentNavigation:      0.75,
	domain.IntentMissionUpdate:   0.75,
	domain.IntentArmDisarm:       0.70,
	domain.IntentModeControl:     0.65,
	domain.IntentUnknown:         0.30,
}

// Analyze infers the command's intent and validates it against the
// current mission phase's expected-intent set (spec §4.8).
func (f *Firewall) Analyze(cmd domain.ParsedCommand) domain.IntentFirewallResult {
	f.mu.Lock()
	state := f.state
	f.history = append(f.history, cmd.Kind)
	if len(f.history) > historyLen {
		f.history = f.history[len(f.history)-historyLen:]
	}
	history := append([]domain.CommandKind(nil), f.history...)
	f.mu.Unlock()

	class := inferIntent(cmd, state, history)
	confidence := calculateConfidence(class, cmd, state)
	return validate(class, confidence, state.MissionPhase)
}

func inferIntent(cmd domain.ParsedCommand, state domain.VehicleState, history []domain.CommandKind) domain.IntentClass {
	switch cmd.Kind {
	case domain.KindEmergency:
		return domain.IntentAbort
	case domain.KindManual:
		return domain.IntentManualOverride
	case domain.KindParameterChange:
		return domain.IntentParameterChange
	case domain.KindMissionUpdate:
		return domain.IntentMissionUpdate
	case domain.KindArmDisarm:
		return domain.IntentArmDisarm
	case domain.KindTakeoffLand:
		if isLandAction(cmd) {
			return domain.IntentLanding
		}
		return domain.IntentNavigation
	case domain.KindModeChange:
		return intentForModeChange(cmd)
	case domain.KindNavigation:
		if isAbortPattern(history) {
			return domain.IntentAbort
		}
		return domain.IntentNavigation
	default:
		return domain.IntentUnknown
	}
}

// intentForModeChange mirrors intent_firewall.py's MODE_CHANGE branch:
// target_mode == RTL -> abort, LAND -> landing, else manual-override
// (the original's catch-all OVERRIDE).
func intentForModeChange(cmd domain.ParsedCommand) domain.IntentClass {
	if v, ok := cmd.ParamFloat("custom_mode"); ok {
		switch uint32(v) {
		case 6: // ArduPilot RTL
			return domain.IntentAbort
		case 9: // ArduPilot LAND
			return domain.IntentLanding
		}
	}
	return domain.IntentManualOverride
}

func isLandAction(cmd domain.ParsedCommand) bool {
	if v, ok := cmd.ParamText("command"); ok {
		return strings.EqualFold(v, "land")
	}
	if v, ok := cmd.ParamFloat("command"); ok {
		return uint16(v) == 21 // MAV_CMD_NAV_LAND
	}
	return false
}

// isAbortPattern is adapted from intent_firewall.py's _is_abort_pattern:
// it reports whether the command before the current one was an emergency
// command, so a navigation command arriving right after it is classified
// as an abort continuation (e.g. a follow-up RTL waypoint).
func isAbortPattern(history []domain.CommandKind) bool {
	if len(history) < 2 {
		return false
	}
	return history[len(history)-2] == domain.KindEmergency
}

func calculateConfidence(class domain.IntentClass, cmd domain.ParsedCommand, state domain.VehicleState) float64 {
	conf, ok := baseConfidence[class]
	if !ok {
		conf = 0.5
	}
	if state.FlightMode != "" && state.FlightMode != domain.FlightModeUnknown {
		conf += 0.05
	}
	if cmd.Kind == domain.KindUnknown {
		conf *= 0.7
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return round2(conf)
}

func validate(class domain.IntentClass, confidence float64, phase domain.MissionPhase) domain.IntentFirewallResult {
	expected := expectedIntents[phase]
	if expected == nil {
		expected = []domain.IntentClass{domain.IntentUnknown}
	}

	match := class == domain.IntentAbort || contains(expected, class)
	var rationale string
	if match {
		rationale = "intent '" + string(class) + "' expected in " + string(phase)
	} else {
		rationale = "mismatch: intent '" + string(class) + "' unexpected in " + string(phase)
	}

	if confidence < 0.6 {
		match = false
		rationale += " | low confidence"
	}

	return domain.IntentFirewallResult{
		Intent:          class,
		Confidence:      confidence,
		Mismatch:        !match,
		Rationale:       rationale,
		Phase:           phase,
		ExpectedIntents: expected,
	}
}

func contains(xs []domain.IntentClass, x domain.IntentClass) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
