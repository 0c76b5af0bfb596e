// Package detect implements the stateful volumetric and semantic
// detectors of spec §4.6-4.7: flood rate/burst/sustained-load scoring
// and the five-stack injection check. Grounded on the teacher's
// ring-buffer-of-timestamps style (security/client_detectors.go) for
// the flood half, and on
// original_source/src/ai_layer/attack_detection/injection_detector.py
// for the injection half's literal tables.
package detect

import (
	"math"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/aegis-gateway/aegis/internal/core/ports"
)

var _ ports.FloodDetector = (*FloodDetector)(nil)

const (
	floodWindow     = 10 * time.Second
	burstWindow     = 1 * time.Second
	subWindowCount  = 10
	defaultNormal   = 5.0
	defaultBurst    = 50.0
	defaultAttack   = 20.0
)

// FloodDetector is stateful per-gateway, not per-peer: a flood is a
// flood regardless of apparent source (spec §4.6).
type FloodDetector struct {
	mu         sync.Mutex
	timestamps []time.Time

	normalThreshold float64
	burstThreshold  float64
	attackThreshold float64
}

// NewFloodDetector builds a detector using spec §4.6's default
// thresholds (normal=5, burst=50, attack=20 events); use
// NewFloodDetectorWithThresholds to override from config (spec §6's
// detectors.flood.* keys).
func NewFloodDetector() *FloodDetector {
	return NewFloodDetectorWithThresholds(defaultNormal, defaultAttack, defaultBurst)
}

// NewFloodDetectorWithThresholds builds a detector with explicit
// normal/attack/burst thresholds, as configured via
// detectors.flood.normal_threshold, .attack_threshold, .burst_threshold.
func NewFloodDetectorWithThresholds(normal, attack, burst float64) *FloodDetector {
	return &FloodDetector{
		normalThreshold: normal,
		attackThreshold: attack,
		burstThreshold:  burst,
	}
}

// Observe records one ingress event and returns the current flood
// verdict computed over the trailing 10s window.
func (f *FloodDetector) Observe(at time.Time) domain.FloodVerdict {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.timestamps = append(f.timestamps, at)
	cutoff := at.Add(-floodWindow)
	f.timestamps = trimBefore(f.timestamps, cutoff)

	rate := f.rate(at)
	burst := f.burstScore(at)
	sustained := f.sustainedScore(at)

	verdict := domain.FloodVerdict{Rate: rate, Burst: burst, Sustained: sustained}

	switch {
	case burst >= 0.8:
		verdict.IsFlood, verdict.Confidence = true, 0.95
	case sustained >= 0.7 && rate >= f.attackThreshold:
		verdict.IsFlood, verdict.Confidence = true, 0.90
	case sustained >= 0.5 && rate >= 0.75*f.attackThreshold:
		verdict.IsFlood, verdict.Confidence = true, 0.75
	case burst >= 0.5:
		verdict.IsFlood, verdict.Confidence = true, 0.60
	default:
		verdict.IsFlood, verdict.Confidence = false, 0.0
	}
	return verdict
}

func (f *FloodDetector) rate(at time.Time) float64 {
	if len(f.timestamps) < 2 {
		return 0
	}
	span := at.Sub(f.timestamps[0]).Seconds()
	if span <= 0 {
		return float64(len(f.timestamps))
	}
	return float64(len(f.timestamps)) / span
}

func (f *FloodDetector) burstScore(at time.Time) float64 {
	cutoff := at.Add(-burstWindow)
	count := 0
	for _, ts := range f.timestamps {
		if !ts.Before(cutoff) {
			count++
		}
	}
	return clipUnit(linearMap(float64(count), f.normalThreshold, f.burstThreshold))
}

// sustainedScore divides the 10s window into subWindowCount sub-windows,
// computes each sub-window's rate, and attenuates the mean by normalized
// standard deviation: high mean x low variance pushes the score toward 1
// (spec §4.6).
func (f *FloodDetector) sustainedScore(at time.Time) float64 {
	if len(f.timestamps) < 2 {
		return 0
	}
	subSpan := floodWindow.Seconds() / float64(subWindowCount)
	counts := make([]float64, subWindowCount)
	start := at.Add(-floodWindow)
	for _, ts := range f.timestamps {
		offset := ts.Sub(start).Seconds()
		if offset < 0 {
			continue
		}
		idx := int(offset / subSpan)
		if idx >= subWindowCount {
			idx = subWindowCount - 1
		}
		counts[idx]++
	}

	rates := make([]float64, subWindowCount)
	for i, c := range counts {
		rates[i] = c / subSpan
	}

	mean := meanOf(rates)
	if mean == 0 {
		return 0
	}
	sd := stddevOf(rates, mean)
	normalizedSD := sd / mean
	attenuation := 1.0 / (1.0 + normalizedSD)
	score := clipUnit(linearMap(mean, f.normalThreshold, f.attackThreshold) * attenuation)
	return score
}

// Reset wipes the timestamp window (spec §4.6: used for tests and after
// recoverable faults).
func (f *FloodDetector) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timestamps = nil
}

func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	return ts[i:]
}

func linearMap(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

func clipUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddevOf(xs []float64, mean float64) float64 {
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(xs))
	return math.Sqrt(variance)
}
