// Package features implements the 37-dimensional windowed feature
// extractor (spec §4.9), grounded on
// original_source/src/ai_layer/ml_models/feature_extractor.py
// (FeatureExtractorV2, window_size=7, per-feature normalization
// formulas) mapped onto spec §4.9's 10/15/12 command/temporal/context
// split.
package features

import (
	"hash/fnv"
	"math"
	"sync"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.FeatureExtractor = (*Extractor)(nil)

const (
	NumFeatures       = 37
	defaultWindowSize = 7
)

// FeatureNames gives the 37-dim vector's schema in emission order, used
// by the ML engine's explainability output (spec §4.10).
var FeatureNames = []string{
	// command features (10)
	"msg_id_norm", "kind_hash", "param1_norm", "param2_norm", "param3_norm",
	"param4_norm", "param_magnitude", "target_sys_norm", "target_comp_norm",
	"time_since_last_cmd",
	// temporal features (15)
	"cmd_freq_1s", "cmd_freq_5s", "intent_transitions", "param_variance",
	"param_mean_change", "repetition_count", "mode_changes_window",
	"time_std_dev", "cmd_type_diversity", "param1_trend", "param2_trend",
	"velocity_trend", "altitude_change_rate", "sequential_same_kind",
	"burst_detected",
	// context features (12)
	"flight_mode_encoded", "mission_phase_encoded", "armed_state",
	"battery_level", "altitude_norm", "velocity_norm", "is_high_altitude",
	"is_low_battery", "is_high_velocity", "mode_context_match",
	"altitude_category", "risk_context_flag",
}

type sample struct {
	cmd   domain.ParsedCommand
	state domain.VehicleState
}

// Extractor maintains a ring of the last W ParsedCommand+VehicleState
// pairs and emits the 37-dim vector grouped as 10 command + 15 temporal
// + 12 context features (spec §4.9).
type Extractor struct {
	mu         sync.Mutex
	windowSize int
	window     []sample
}

func New(windowSize int) *Extractor {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &Extractor{windowSize: windowSize}
}

// Observe appends the latest command+state pair and returns the feature
// vector. It returns ok=false when fewer than two commands are buffered
// (spec §4.9).
func (e *Extractor) Observe(cmd domain.ParsedCommand, state domain.VehicleState) ([]float64, bool) {
	e.mu.Lock()
	e.window = append(e.window, sample{cmd: cmd, state: state})
	if len(e.window) > e.windowSize {
		e.window = e.window[len(e.window)-e.windowSize:]
	}
	window := append([]sample(nil), e.window...)
	e.mu.Unlock()

	if len(window) < 2 {
		return nil, false
	}

	out := make([]float64, 0, NumFeatures)
	out = append(out, commandFeatures(window)...)
	out = append(out, temporalFeatures(window)...)
	out = append(out, contextFeatures(window[len(window)-1])...)

	for i, v := range out {
		out[i] = clipRange(v, -1, 1)
	}
	return out, true
}

func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.window = nil
}

// commandFeatures is feature_extractor.py's _extract_command_features
// (10 features), operating on the most recent command.
func commandFeatures(window []sample) []float64 {
	cur := window[len(window)-1]
	prev := window[len(window)-2]

	msgIDNorm := float64(cur.cmd.MessageID) / 300.0
	kindHash := float64(fnv32(string(cur.cmd.Kind))%1000) / 1000.0

	p1, _ := cur.cmd.ParamFloat("param1")
	p2, _ := cur.cmd.ParamFloat("param2")
	p3, _ := cur.cmd.ParamFloat("param3")
	p4, _ := cur.cmd.ParamFloat("param4")

	magnitude := math.Sqrt(p1*p1 + p2*p2 + p3*p3 + p4*p4)

	timeDeltaSec := float64(cur.cmd.IngressTimeNS-prev.cmd.IngressTimeNS) / 1e9

	return []float64{
		clipUnit(msgIDNorm),
		kindHash,
		clip(p1/100.0, -1, 1),
		clip(p2/100.0, -1, 1),
		clip(p3/100.0, -1, 1),
		clip(p4/100.0, -1, 1),
		clipUnit(magnitude / 200.0),
		float64(cur.cmd.SourceSystemID) / 255.0,
		float64(cur.cmd.SourceComponentID) / 255.0,
		clipUnit(timeDeltaSec / 5.0),
	}
}

// temporalFeatures is feature_extractor.py's _extract_temporal_features
// (15 features) over the full window.
func temporalFeatures(window []sample) []float64 {
	n := len(window)
	last := window[n-1]
	lastTS := float64(last.cmd.IngressTimeNS) / 1e9

	recent1s, recent5s := 0, 0
	for _, s := range window {
		ts := float64(s.cmd.IngressTimeNS) / 1e9
		if lastTS-ts <= 1.0 {
			recent1s++
		}
		if lastTS-ts <= 5.0 {
			recent5s++
		}
	}
	cmdFreq1s := clipUnit(float64(recent1s) / 10.0)
	cmdFreq5s := clipUnit(float64(recent5s) / 50.0)

	modeChanges := 0
	for i := 1; i < n; i++ {
		if window[i].state.FlightMode != window[i-1].state.FlightMode {
			modeChanges++
		}
	}
	intentTransitions := clipUnit(float64(modeChanges) / 5.0)
	modeChangesNorm := clipUnit(float64(modeChanges) / float64(n))

	param1s := make([]float64, n)
	for i, s := range window {
		v, _ := s.cmd.ParamFloat("param1")
		param1s[i] = v
	}
	paramVar := clipUnit(variance(param1s) / 100.0)
	paramMeanChange := clipUnit(meanAbsDiff(param1s) / 50.0)

	lastKind := last.cmd.Kind
	repetition := 0
	diversity := map[domain.CommandKind]bool{}
	for _, s := range window {
		if s.cmd.Kind == lastKind {
			repetition++
		}
		diversity[s.cmd.Kind] = true
	}
	repetitionNorm := clipUnit(float64(repetition) / float64(n))
	cmdDiversity := float64(len(diversity)) / float64(n)

	timestamps := make([]float64, n)
	for i, s := range window {
		timestamps[i] = float64(s.cmd.IngressTimeNS) / 1e9
	}
	diffs := diff(timestamps)
	timeStdNorm := clipUnit(stddev(diffs) / 2.0)

	param1Trend := trend(param1s)
	param2s := make([]float64, n)
	for i, s := range window {
		v, _ := s.cmd.ParamFloat("param2")
		param2s[i] = v
	}
	param2Trend := trend(param2s)

	velocities := make([]float64, n)
	for i, s := range window {
		velocities[i] = s.state.HorizontalVelo
	}
	velocityTrend := trend(velocities)

	altitudes := make([]float64, n)
	for i, s := range window {
		altitudes[i] = s.state.AltitudeAGL
	}
	altChangeRate := clipUnit(meanAbs(diff(altitudes)) / 10.0)

	sequentialSame := 0.0
	if n >= 2 && window[n-1].cmd.Kind == window[n-2].cmd.Kind {
		sequentialSame = 1.0
	}
	burstDetected := 0.0
	if cmdFreq1s > 0.5 {
		burstDetected = 1.0
	}

	return []float64{
		cmdFreq1s,
		cmdFreq5s,
		intentTransitions,
		paramVar,
		paramMeanChange,
		repetitionNorm,
		modeChangesNorm,
		timeStdNorm,
		cmdDiversity,
		param1Trend,
		param2Trend,
		velocityTrend,
		altChangeRate,
		sequentialSame,
		burstDetected,
	}
}

var flightModeIndex = map[domain.FlightMode]float64{
	domain.FlightModeManual:    0,
	domain.FlightModeStabilize: 1,
	domain.FlightModeGuided:    2,
	domain.FlightModeAuto:      3,
	domain.FlightModeRTL:       4,
	domain.FlightModeLand:      5,
	domain.FlightModeLoiter:    6,
	domain.FlightModeUnknown:   7,
}

var missionPhaseIndex = map[domain.MissionPhase]float64{
	domain.PhaseIdle:      0,
	domain.PhasePreFlight: 1,
	domain.PhaseTakeoff:   2,
	domain.PhaseCruise:    3,
	domain.PhaseMission:   4,
	domain.PhaseReturn:    5,
	domain.PhaseLanding:   6,
}

// contextFeatures is feature_extractor.py's _extract_context_features
// (12 features), evaluated on the current command+state pair.
func contextFeatures(cur sample) []float64 {
	mode := flightModeIndex[cur.state.FlightMode] / float64(len(flightModeIndex))
	phase := missionPhaseIndex[cur.state.MissionPhase] / float64(len(missionPhaseIndex))
	armed := 0.0
	if cur.state.Armed {
		armed = 1.0
	}
	battery := clip(cur.state.Battery, 0, 1)
	altitudeNorm := clipUnit(cur.state.AltitudeAGL / 100.0)
	velocityNorm := clipUnit(cur.state.HorizontalVelo / 20.0)

	isHighAltitude := flagOf(cur.state.AltitudeAGL > 50.0)
	isLowBattery := flagOf(cur.state.Battery < 0.2)
	isHighVelocity := flagOf(cur.state.HorizontalVelo > 15.0)

	modeMatch := modeContextMatch(cur)

	var altCategory float64
	switch {
	case cur.state.AltitudeAGL < 5.0:
		altCategory = 0.0
	case cur.state.AltitudeAGL < 30.0:
		altCategory = 0.5
	default:
		altCategory = 1.0
	}

	riskFlag := flagOf(isHighAltitude == 1.0 || isLowBattery == 1.0 || isHighVelocity == 1.0)

	return []float64{
		mode, phase, armed, battery, altitudeNorm, velocityNorm,
		isHighAltitude, isLowBattery, isHighVelocity, modeMatch, altCategory, riskFlag,
	}
}

// modeContextMatch mirrors feature_extractor.py's
// _check_mode_context_match heuristics.
func modeContextMatch(cur sample) float64 {
	mode := cur.state.FlightMode
	kind := cur.cmd.Kind

	if mode == domain.FlightModeManual && kind == domain.KindNavigation {
		return 0.0
	}
	if mode == domain.FlightModeAuto && kind == domain.KindManual {
		return 0.0
	}
	if mode == domain.FlightModeLand && kind == domain.KindTakeoffLand {
		if v, ok := cur.cmd.ParamText("command"); ok && v == "takeoff" {
			return 0.0
		}
	}
	return 1.0
}

func flagOf(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clipUnit(v float64) float64 { return clip(v, 0, 1) }
func clipRange(v, lo, hi float64) float64 { return clip(v, lo, hi) }

func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return math.Sqrt(variance(xs))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func diff(xs []float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = xs[i] - xs[i-1]
	}
	return out
}

func meanAbsDiff(xs []float64) float64 {
	d := diff(xs)
	return meanAbs(d)
}

func meanAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Abs(x)
	}
	return sum / float64(len(xs))
}

// trend computes the Pearson-correlation-based slope direction used by
// feature_extractor.py's _compute_trend, clipped to [-1, 1].
func trend(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	if n <= 2 {
		// original short-circuits to 0.0 for n<=2 rather than computing corr
		return 0
	}
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
	}
	c := correlation(idx, xs)
	return clip(c, -1, 1)
}

func correlation(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}
