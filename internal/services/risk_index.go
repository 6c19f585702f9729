package services

import (
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/risk"
	"fmt"
	"time"
)

type riskKey struct {
	segment int
	unix    int64
}

// riskIndex memoizes assessments for one schedule computation. The same
// segment is looked at several times while a stop is being placed, and the
// sun model is the expensive part of each look.
type riskIndex struct {
	eval     risk.Evaluator
	segments []domain.RouteSegment
	memo     map[riskKey]domain.RiskAssessment
}

func newRiskIndex(eval risk.Evaluator, segments []domain.RouteSegment) *riskIndex {
	return &riskIndex{
		eval:     eval,
		segments: segments,
		memo:     make(map[riskKey]domain.RiskAssessment),
	}
}

// at assesses segment i (by position in the route) for a driver on it at t.
func (r *riskIndex) at(i int, t time.Time) (domain.RiskAssessment, error) {
	key := riskKey{segment: i, unix: t.Unix()}
	if a, ok := r.memo[key]; ok {
		return a, nil
	}

	a, err := r.eval.Evaluate(r.segments[i], t)
	if err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("risk at segment %d: %w", i, err)
	}
	r.memo[key] = a
	return a, nil
}
