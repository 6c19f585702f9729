// Package risk scores sun-glare and low-light hazard for a direction of travel.
package risk

import (
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/solar"
	"fmt"
	"math"
	"time"
)

// HighRiskThreshold is the score at or above which a segment is treated as a
// high-risk window worth covering with a stop.
const HighRiskThreshold = 70.0

// Altitude and angle boundaries of the scoring brackets, in degrees.
const (
	nauticalTwilight = -12.0
	civilTwilight    = -6.0
	lowSun           = 15.0
	moderateSun      = 30.0
	glareCone        = 30.0
)

// Evaluator scores one segment at the instant the driver starts it.
type Evaluator interface {
	Evaluate(seg domain.RouteSegment, at time.Time) (domain.RiskAssessment, error)
}

// SunlightEvaluator is the production Evaluator: sun position at the segment
// midpoint combined with the segment's bearing.
type SunlightEvaluator struct{}

func (SunlightEvaluator) Evaluate(seg domain.RouteSegment, at time.Time) (domain.RiskAssessment, error) {
	sun, err := solar.Position(SamplePoint(seg), at)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("evaluate segment %d: %w", seg.Index, err)
	}
	return Assess(sun, SegmentBearing(seg)), nil
}

// Assess scores a sun position against a driving bearing.
// Brackets are evaluated in order and the first match wins; inside a bracket
// the score is interpolated linearly so that a lower sun and a smaller angle to
// the sun both raise it.
func Assess(sun domain.SunPosition, bearing float64) domain.RiskAssessment {
	alt := sun.Altitude

	out := domain.RiskAssessment{
		Sun:       sun,
		Bearing:   bearing,
		IsDaytime: alt >= 0,
	}

	diff := AngleDifference(bearing, sun.Azimuth)
	out.AngleToSun = diff

	if alt < 0 {
		switch {
		case alt < nauticalTwilight:
			out.Score = 75
			out.Level = domain.RiskHigh
			out.Explanation = fmt.Sprintf("Full nighttime - sun %.1f° below horizon (%.1f° off heading), visibility depends on lighting", -alt, diff)
		case alt < civilTwilight:
			out.Score = 60
			out.Level = domain.RiskModerateHigh
			out.Explanation = fmt.Sprintf("Nautical twilight - sun %.1f° below horizon (%.1f° off heading), significantly reduced visibility", -alt, diff)
		default:
			out.Score = 45
			out.Level = domain.RiskModerate
			out.Explanation = fmt.Sprintf("Civil twilight - sun %.1f° below horizon (%.1f° off heading), reduced visibility", -alt, diff)
		}
		return out
	}

	switch {
	case alt < lowSun && diff < glareCone:
		out.Score = 80 + 20*mean(closeness(alt, 0, lowSun), closeness(diff, 0, glareCone))
		out.Level = domain.RiskCritical
		out.Explanation = fmt.Sprintf("Severe glare - driving into low sun (altitude %.1f°, %.1f° off heading)", alt, diff)
	case alt < moderateSun && diff < glareCone:
		out.Score = 60 + 20*mean(closeness(alt, lowSun, moderateSun), closeness(diff, 0, glareCone))
		out.Level = domain.RiskHigh
		out.Explanation = fmt.Sprintf("Strong glare - driving toward sun (altitude %.1f°, %.1f° off heading)", alt, diff)
	case alt < moderateSun:
		out.Score = 40 + 20*mean(closeness(alt, 0, moderateSun), closeness(diff, glareCone, 180))
		out.Level = domain.RiskModerate
		out.Explanation = fmt.Sprintf("Some glare possible - sun low at the side (altitude %.1f°, %.1f° off heading)", alt, diff)
	default:
		out.Score = 20 + 20*mean(closeness(alt, moderateSun, 90), closeness(diff, 0, 180))
		out.Level = domain.RiskLow
		out.Explanation = fmt.Sprintf("Minimal glare - high sun (altitude %.1f°, %.1f° off heading)", alt, diff)
	}

	out.Score = round1(out.Score)
	return out
}

// LevelForScore maps a single score onto the six assessment levels.
func LevelForScore(score float64) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskCritical
	case score >= HighRiskThreshold:
		return domain.RiskHigh
	case score >= 60:
		return domain.RiskModerateHigh
	case score >= 40:
		return domain.RiskModerate
	case score >= 25:
		return domain.RiskLow
	default:
		return domain.RiskVeryLow
	}
}

// RouteLevel classifies a route's average score on the coarser four-step
// scale used for whole trips.
func RouteLevel(avg float64) domain.RiskLevel {
	switch {
	case avg < 30:
		return domain.RiskLow
	case avg < 50:
		return domain.RiskModerate
	case avg < HighRiskThreshold:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

// closeness maps v in [lo, hi] to 1 at lo and 0 at hi.
func closeness(v, lo, hi float64) float64 {
	f := (hi - v) / (hi - lo)
	return math.Max(0, math.Min(1, f))
}

func mean(a, b float64) float64 { return (a + b) / 2 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
