package services

import (
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/hos"
	"fmt"
	"time"
)

// Placement parameters. Regulatory limits live in package hos; these only
// shape where inside those limits a stop lands.
const (
	lookAheadWindow     = 4 * time.Hour
	breakDeferTolerance = time.Hour
	restDeferTolerance  = 2 * time.Hour
)

// stopPlacer times mandatory stops so they overlap high-risk driving.
//
// A stop can never start later than the instant the hours-of-service engine
// demands it, so moving a stop onto a risky stretch means taking it up to
// one tolerance early. Candidates are the segment starts, and the mandated
// instant itself, that fall inside [mandated - tolerance, mandated] under
// continuous driving. The latest candidate whose risk reaches the threshold
// wins; the stop is taken when the driver reaches it.
type stopPlacer struct {
	risk      *riskIndex
	segments  []domain.RouteSegment
	threshold float64
	lookAhead time.Duration
}

type placement struct {
	stopNow bool
	risk    domain.RiskAssessment
}

func tolerance(kind hos.DecisionKind) time.Duration {
	if kind == hos.RestRequired {
		return restDeferTolerance
	}
	return breakDeferTolerance
}

// atSegmentStart decides whether the stop that falls due after budget more
// driving should be taken now, at the start of segment i. routeLeft is the
// driving still ahead on the whole route; a stop the route ends before is
// never pulled in.
func (p *stopPlacer) atSegmentStart(i int, clock time.Time, kind hos.DecisionKind, budget, routeLeft time.Duration) (placement, error) {
	if budget <= 0 || budget >= routeLeft || budget > p.lookAhead {
		return placement{}, nil
	}
	earliest := budget - tolerance(kind)

	var (
		best      domain.RiskAssessment
		bestAt    time.Duration
		found     bool
		segOffset time.Duration
	)
	consider := func(j int, off time.Duration) error {
		if off < earliest || off > budget {
			return nil
		}
		a, err := p.risk.at(j, clock.Add(off))
		if err != nil {
			return err
		}
		if a.Score >= p.threshold {
			best, bestAt, found = a, off, true
		}
		return nil
	}

	for j := i; j < len(p.segments) && segOffset <= budget; j++ {
		if err := consider(j, segOffset); err != nil {
			return placement{}, fmt.Errorf("place %s: %w", kind, err)
		}
		d := p.segments[j].DriveDuration()
		if segOffset < budget && budget < segOffset+d {
			if err := consider(j, budget); err != nil {
				return placement{}, fmt.Errorf("place %s: %w", kind, err)
			}
		}
		segOffset += d
	}

	if !found || bestAt != 0 {
		return placement{}, nil
	}
	return placement{stopNow: true, risk: best}, nil
}

// atMandate assesses the instant a stop is forced. The stop cannot move, but
// it still counts as placed on a high-risk stretch when it lands on one.
func (p *stopPlacer) atMandate(i int, clock time.Time) (placement, error) {
	a, err := p.risk.at(i, clock)
	if err != nil {
		return placement{}, err
	}
	return placement{stopNow: a.Score >= p.threshold, risk: a}, nil
}

func optimizedReason(kind hos.DecisionKind, score float64) string {
	if kind == hos.RestRequired {
		return fmt.Sprintf("Optimized rest during high-risk period (risk: %.0f)", score)
	}
	return fmt.Sprintf("Strategic break during high-risk period (risk: %.0f)", score)
}

func mandatoryReason(kind hos.DecisionKind, s domain.DriverState) string {
	switch {
	case kind == hos.BreakRequired:
		return "Mandatory 30-minute break after 8 hours of driving"
	case s.DrivingSinceRest >= hos.MaxDrivingPerWindow:
		return "Mandatory 10-hour rest: 11-hour driving limit reached"
	default:
		return "Mandatory 10-hour rest: 14-hour duty window reached"
	}
}
