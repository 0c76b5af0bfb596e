// Package decision implements the Risk-Proportional Decision Engine
// (spec §4.12), grounded on
// original_source/companion_comp/decision_engine/risk_aggregator.py's
// RiskProportionalDecisionEngine (aggregate_risk, determine_severity,
// _make_decision, _calculate_confidence). The legacy module-level
// decision_engine() binary classifier at the bottom of that file is
// intentionally not carried over (see DESIGN.md): it predates the
// weighted aggregator and the spec supersedes it.
package decision

import (
	"fmt"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.DecisionEngine = (*Engine)(nil)

// Weights mirrors risk_aggregator.py's WEIGHTS table (spec §4.12).
type Weights struct {
	Crypto     float64
	Intent     float64
	Behavior   float64
	Trajectory float64
	MLIntent   float64
}

// DefaultWeights is spec §4.12's normative weight table.
var DefaultWeights = Weights{
	Crypto:     0.25,
	Intent:     0.15,
	Behavior:   0.20,
	Trajectory: 0.20,
	MLIntent:   0.20,
}

// Engine aggregates per-detector risk inputs into a single decision.
type Engine struct {
	weights Weights
}

func New(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Decide aggregates the weighted risk, applies emergency-override floors,
// and maps the result onto a severity and decision state (spec §4.12).
func (e *Engine) Decide(in domain.RiskInputs) domain.Decision {
	factors := []domain.ContributingFactor{
		{Name: "crypto", Weight: e.weights.Crypto, Value: in.CryptoInvalid},
		{Name: "intent", Weight: e.weights.Intent, Value: in.IntentMismatch},
		{Name: "behavior", Weight: e.weights.Behavior, Value: in.BehaviorAnomaly},
		{Name: "trajectory", Weight: e.weights.Trajectory, Value: in.TrajectoryRisk},
		{Name: "ml_intent", Weight: e.weights.MLIntent, Value: in.MLIntentRisk},
	}

	var total float64
	for _, f := range factors {
		total += f.Weight * f.Value
	}

	total, overrideReason := applyOverrides(total, in)

	if total > 1.0 {
		total = 1.0
	}
	if total < 0 {
		total = 0
	}

	severity := domain.SeverityFromRisk(total)
	state := domain.StateFromSeverity(severity)
	confidence := calculateConfidence(in)
	rationale := rationale(severity, factors, overrideReason)

	return domain.Decision{
		State:               state,
		Severity:            severity,
		TotalRisk:           total,
		Confidence:          confidence,
		Rationale:           rationale,
		ContributingFactors: significantFactors(factors),
	}
}

// applyOverrides mirrors risk_aggregator.py's emergency-override floors:
// a geofence violation floors total risk at 0.85, a high-confidence
// behavior anomaly at 0.75, crypto invalidity at 0.70, and a
// high-confidence high-risk ML intent reading at 0.75.
func applyOverrides(total float64, in domain.RiskInputs) (float64, string) {
	if in.GeofenceViolation && total < 0.85 {
		return 0.85, "geofence violation forces minimum severity"
	}
	if in.BehaviorAnomalyHigh && total < 0.75 {
		return 0.75, "high-confidence behavioral anomaly forces minimum severity"
	}
	if in.CryptoInvalid >= 1.0 && total < 0.70 {
		return 0.70, "invalid crypto envelope forces minimum severity"
	}
	if in.MLHighConfidenceHigh && total < 0.75 {
		return 0.75, "high-confidence ML intent risk forces minimum severity"
	}
	return total, ""
}

// calculateConfidence mirrors risk_aggregator.py's _calculate_confidence:
// starts at 0.9, penalized for low-confidence per-input readings, floored
// at 0.5.
func calculateConfidence(in domain.RiskInputs) float64 {
	conf := 0.9
	if in.IntentConfidence > 0 && in.IntentConfidence < 0.6 {
		conf -= 0.2
	}
	if in.BehaviorConfidence >= 0.4 && in.BehaviorConfidence <= 0.6 {
		conf -= 0.1
	}
	if in.CryptoInvalid >= 1.0 {
		conf -= 0.15
	}
	if in.MLConfidence > 0 {
		conf += (in.MLConfidence - 0.5) * 0.1
	}
	if conf < 0.5 {
		conf = 0.5
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func significantFactors(factors []domain.ContributingFactor) []domain.ContributingFactor {
	out := make([]domain.ContributingFactor, 0, len(factors))
	for _, f := range factors {
		if f.Weight*f.Value > 0.02 {
			out = append(out, f)
		}
	}
	return out
}

func rationale(sev domain.Severity, factors []domain.ContributingFactor, overrideReason string) string {
	var top domain.ContributingFactor
	for _, f := range factors {
		if f.Weight*f.Value > top.Weight*top.Value {
			top = f
		}
	}

	base := fmt.Sprintf("severity=%s driven primarily by %s (weight=%.2f value=%.2f)",
		sev, top.Name, top.Weight, top.Value)
	if overrideReason != "" {
		base += "; " + overrideReason
	}
	return base
}
