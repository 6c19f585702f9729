package services

import (
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/risk"
	"fmt"
	"math"
	"time"
)

// Weights of the two parts of the safety score.
const (
	coverageWeight = 0.6
	exposureWeight = 0.4
)

// Route averages above which departing at another time is suggested and
// below which lighting is called excellent.
const (
	averageHighRisk = 70.0
	averageLowRisk  = 30.0
)

// Labels for safety scores, highest band first.
const (
	SafetyExcellent = "Excellent"
	SafetyGood      = "Good"
	SafetyFair      = "Fair"
	SafetyPoor      = "Poor"
	SafetyHazardous = "Hazardous"
)

// safetyScore rates a schedule 0..100. Coverage is the share of high-risk
// segments that have an optimized stop next to them; exposure is the share of
// all driving done on uncovered high-risk segments. A route without high-risk
// driving scores 100.
func safetyScore(exp []segmentExposure, driving time.Duration, threshold float64) float64 {
	var (
		high, covered int
		uncovered     time.Duration
	)
	for _, e := range exp {
		if !isHighRisk(e, threshold) {
			continue
		}
		high++
		if e.covered {
			covered++
		} else {
			uncovered += e.highRisk
		}
	}

	coverage := 1.0
	if high > 0 {
		coverage = float64(covered) / float64(high)
	}
	share := 0.0
	if driving > 0 {
		share = float64(uncovered) / float64(driving)
	}

	score := 100 * (coverageWeight*coverage + exposureWeight*(1-share))
	return math.Round(math.Max(0, math.Min(100, score))*10) / 10
}

func safetyLevel(score float64) string {
	switch {
	case score >= 90:
		return SafetyExcellent
	case score >= 75:
		return SafetyGood
	case score >= 60:
		return SafetyFair
	case score >= 40:
		return SafetyPoor
	default:
		return SafetyHazardous
	}
}

func isHighRisk(e segmentExposure, threshold float64) bool {
	return e.driving > 0 && e.peak.Score >= threshold
}

func summarizeRisk(exp []segmentExposure, driving time.Duration, threshold float64) domain.RiskSummary {
	var (
		sum   float64
		night time.Duration
		out   domain.RiskSummary
	)
	for _, e := range exp {
		sum += e.peak.Score
		night += e.night
		if isHighRisk(e, threshold) {
			out.HighRiskSegments++
		}
		if e.peak.Level == domain.RiskCritical {
			out.CriticalSegments++
		}
	}

	if len(exp) > 0 {
		out.AverageScore = math.Round(sum/float64(len(exp))*10) / 10
	}
	out.OverallLevel = risk.RouteLevel(out.AverageScore)
	if driving > 0 {
		out.NightShare = math.Round(float64(night)/float64(driving)*1000) / 1000
	}
	return out
}

func uncoveredWarnings(segments []domain.RouteSegment, exp []segmentExposure, threshold float64) []string {
	out := []string{}
	for i, e := range exp {
		if !isHighRisk(e, threshold) || e.covered {
			continue
		}
		out = append(out, fmt.Sprintf("Segment %d: %s risk (score %.1f) with no stop to cover it. %s",
			segments[i].Index, e.peak.Level, e.peak.Score, e.peak.Explanation))
	}
	return out
}

func riskRecommendations(s domain.RiskSummary) []string {
	out := []string{}
	if s.AverageScore > averageHighRisk {
		out = append(out, "High sunlight risk across the route; consider departing at a different time")
	}
	if s.CriticalSegments > 0 {
		out = append(out, fmt.Sprintf("%d segment(s) with severe sun glare; check sun visors and carry sunglasses", s.CriticalSegments))
	}
	if s.NightShare > 0 {
		out = append(out, fmt.Sprintf("%.0f%% of driving is after dark; check that all vehicle lights work", s.NightShare*100))
	}
	if s.AverageScore < averageLowRisk {
		out = append(out, "Excellent lighting conditions for this route and time")
	}
	return out
}
