// Package hos enforces hours-of-service limits on a driver's running totals.
//
// The limits are fixed regulatory values and live here only; callers ask the
// engine whether a proposed drive fits and apply the stops it demands.
package hos

import (
	"driver-schedule-service/internal/domain"
	"fmt"
	"time"
)

const (
	// Continuous driving allowed before a 30-minute break is mandatory.
	MaxDrivingBeforeBreak = 8 * time.Hour
	BreakDuration         = 30 * time.Minute
	// Driving allowed within one duty window.
	MaxDrivingPerWindow = 11 * time.Hour
	// Length of the duty window; reaching it forces a rest.
	MaxOnDutyWindow = 14 * time.Hour
	RestDuration    = 10 * time.Hour
)

type DecisionKind int

const (
	ContinueDriving DecisionKind = iota
	BreakRequired
	RestRequired
)

func (k DecisionKind) String() string {
	switch k {
	case ContinueDriving:
		return "continue"
	case BreakRequired:
		return "break_required"
	case RestRequired:
		return "rest_required"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int(k))
	}
}

// Decision is the outcome of Advance. For BreakRequired and RestRequired,
// AtOffset is how far into the proposed drive the limit is reached.
type Decision struct {
	Kind     DecisionKind
	AtOffset time.Duration
}

// Engine applies the limits. It holds no state; all state is the
// DriverState passed in, so one Engine may serve concurrent requests.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Advance drives up to proposed, stopping at the first limit reached.
//
// When the whole drive fits, state is advanced by proposed and the decision is
// ContinueDriving. Reaching a limit exactly at the end of the drive still
// fits; the stop is demanded by the next call. Otherwise state is advanced to
// the offset where the limit is hit and the decision names the stop the caller
// must apply before driving again. A rest wins over a break when both fall due
// at the same offset, since the rest also satisfies the break.
func (e *Engine) Advance(s *domain.DriverState, proposed time.Duration) (Decision, error) {
	if proposed < 0 {
		return Decision{}, fmt.Errorf("advance: proposed drive %v: %w", proposed, domain.ErrInvalidSegment)
	}

	kind, budget := e.NextStop(*s)
	if proposed <= budget {
		e.drive(s, proposed)
		return Decision{Kind: ContinueDriving}, nil
	}

	offset := max(budget, 0)
	e.drive(s, offset)
	return Decision{Kind: kind, AtOffset: offset}, nil
}

// NextStop returns the stop that will fall due first under continuous driving
// and how much driving remains until it does. A budget of zero means the stop
// is already mandatory.
func (e *Engine) NextStop(s domain.DriverState) (DecisionKind, time.Duration) {
	breakLeft := MaxDrivingBeforeBreak - s.DrivingSinceBreak
	restLeft := min(MaxDrivingPerWindow-s.DrivingSinceRest, MaxOnDutyWindow-s.OnDuty)

	if restLeft <= breakLeft {
		return RestRequired, max(restLeft, 0)
	}
	// A break that would use up the duty window is taken as the rest.
	if s.OnDuty+breakLeft+BreakDuration >= MaxOnDutyWindow {
		return RestRequired, max(breakLeft, 0)
	}
	return BreakRequired, max(breakLeft, 0)
}

// TakeBreak applies a 30-minute break. Break time stays inside the duty window.
func (e *Engine) TakeBreak(s *domain.DriverState) time.Duration {
	s.DrivingSinceBreak = 0
	s.OnDuty += BreakDuration
	s.Clock = s.Clock.Add(BreakDuration)
	return BreakDuration
}

// TakeRest applies a 10-hour rest, which closes the duty window.
func (e *Engine) TakeRest(s *domain.DriverState) time.Duration {
	s.DrivingSinceBreak = 0
	s.DrivingSinceRest = 0
	s.OnDuty = 0
	s.Clock = s.Clock.Add(RestDuration)
	return RestDuration
}

// Apply takes the stop named by a decision kind.
func (e *Engine) Apply(s *domain.DriverState, kind DecisionKind) time.Duration {
	switch kind {
	case BreakRequired:
		return e.TakeBreak(s)
	case RestRequired:
		return e.TakeRest(s)
	default:
		return 0
	}
}

// CanWait reports whether an on-duty wait of d still leaves the duty window open.
func (e *Engine) CanWait(s domain.DriverState, d time.Duration) bool {
	return d >= 0 && s.OnDuty+d < MaxOnDutyWindow
}

// Wait applies an on-duty, non-driving wait.
func (e *Engine) Wait(s *domain.DriverState, d time.Duration) error {
	if !e.CanWait(*s, d) {
		return fmt.Errorf("wait %v with %v on duty: exceeds duty window", d, s.OnDuty)
	}
	s.OnDuty += d
	s.Clock = s.Clock.Add(d)
	return nil
}

func (e *Engine) drive(s *domain.DriverState, d time.Duration) {
	s.DrivingSinceBreak += d
	s.DrivingSinceRest += d
	s.OnDuty += d
	s.Clock = s.Clock.Add(d)
}

// StopDuration is the fixed length of a mandatory stop.
func StopDuration(kind DecisionKind) time.Duration {
	switch kind {
	case BreakRequired:
		return BreakDuration
	case RestRequired:
		return RestDuration
	default:
		return 0
	}
}
