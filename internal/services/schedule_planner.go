package services

import (
	"context"
	"driver-schedule-service/internal/clock"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/hos"
	"driver-schedule-service/internal/risk"
	"driver-schedule-service/internal/solar"
	"fmt"
	"time"
)

type PlannerOptions struct {
	// Reject departures before Clock.Now() instead of warning about them.
	RequireFutureDeparture bool
	// Length of an optional on-duty wait before a critical-glare segment.
	// Zero disables waits.
	SafetyWait time.Duration
	Clock      clock.Clock
	Evaluator  risk.Evaluator
}

// SchedulePlanner turns a route into an hours-of-service compliant schedule.
// It keeps no per-request state and is safe for concurrent use.
type SchedulePlanner struct {
	opts   PlannerOptions
	engine *hos.Engine
}

func NewSchedulePlanner(opts PlannerOptions) *SchedulePlanner {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Evaluator == nil {
		opts.Evaluator = risk.SunlightEvaluator{}
	}
	if opts.SafetyWait < 0 {
		opts.SafetyWait = 0
	}
	return &SchedulePlanner{opts: opts, engine: hos.NewEngine()}
}

// ComputeSchedule plans a route with default options.
func ComputeSchedule(ctx context.Context, segments []domain.RouteSegment, departAt time.Time) (*domain.Schedule, error) {
	return NewSchedulePlanner(PlannerOptions{}).ComputeSchedule(ctx, segments, departAt)
}

// ComputeSchedule walks the segments in order, inserting the breaks and rests
// the hours-of-service rules demand and timing them onto high-risk stretches
// where the rules allow it.
//
// The result is a pure function of the segments, the departure time and the
// planner options; only the past-departure check reads the clock. Cancellation
// is checked between segments.
func (p *SchedulePlanner) ComputeSchedule(ctx context.Context, segments []domain.RouteSegment, departAt time.Time) (*domain.Schedule, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("compute schedule: %w", domain.ErrEmptyRoute)
	}
	if departAt.IsZero() {
		return nil, fmt.Errorf("compute schedule: departure time is required: %w", domain.ErrInvalidInput)
	}
	total := 0.0
	for _, seg := range segments {
		if err := seg.Validate(); err != nil {
			return nil, fmt.Errorf("compute schedule: %w", err)
		}
		total += seg.DriveSeconds()
	}
	if total > domain.MaxRouteSeconds {
		return nil, fmt.Errorf("compute schedule: route drives %.0f seconds, limit is %.0f: %w",
			total, domain.MaxRouteSeconds, domain.ErrInvalidInput)
	}

	departAt = departAt.UTC()
	warnings := []string{}

	if now := p.opts.Clock.Now(); departAt.Before(now) {
		if p.opts.RequireFutureDeparture {
			return nil, fmt.Errorf("compute schedule: departure %s is before %s: %w",
				departAt.Format(time.RFC3339), now.UTC().Format(time.RFC3339), domain.ErrDepartureInPast)
		}
		warnings = append(warnings, "Departure time is in the past; timings assume the trip starts as planned")
	}

	a := newAssembly(p.engine, p.opts, segments, departAt)
	for i := range segments {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("compute schedule: %w", err)
		}
		if err := a.driveSegment(i); err != nil {
			return nil, fmt.Errorf("compute schedule: %w", err)
		}
	}

	sched := a.finish(departAt, warnings)
	if err := hos.Replay(sched); err != nil {
		return nil, fmt.Errorf("compute schedule: %w", err)
	}
	return sched, nil
}

// segmentExposure is what one segment contributed to the route's risk.
type segmentExposure struct {
	peak     domain.RiskAssessment
	assessed bool
	driving  time.Duration
	highRisk time.Duration
	night    time.Duration
	// An optimized stop or safety wait sits right before or after the
	// segment's driving.
	covered bool
}

// assembly is the mutable accumulator for one ComputeSchedule call.
type assembly struct {
	engine     *hos.Engine
	risk       *riskIndex
	placer     *stopPlacer
	segments   []domain.RouteSegment
	safetyWait time.Duration

	state     domain.DriverState
	routeLeft time.Duration
	events    []domain.ScheduleEvent
	exposure  []segmentExposure
	stopNotes []string

	// Position of the segment driven by the last event, or -1.
	lastDriven  int
	lastCovers  bool
	justStopped bool
}

func newAssembly(engine *hos.Engine, opts PlannerOptions, segments []domain.RouteSegment, departAt time.Time) *assembly {
	idx := newRiskIndex(opts.Evaluator, segments)

	var total time.Duration
	for _, seg := range segments {
		total += seg.DriveDuration()
	}

	return &assembly{
		engine: engine,
		risk:   idx,
		placer: &stopPlacer{
			risk:      idx,
			segments:  segments,
			threshold: risk.HighRiskThreshold,
			lookAhead: lookAheadWindow,
		},
		segments:   segments,
		safetyWait: opts.SafetyWait,
		state:      domain.DriverState{Clock: departAt},
		routeLeft:  total,
		events:     []domain.ScheduleEvent{},
		exposure:   make([]segmentExposure, len(segments)),
		lastDriven: -1,
	}
}

func (a *assembly) driveSegment(i int) error {
	seg := a.segments[i]
	remaining := seg.DriveDuration()

	if err := a.maybeWait(i, remaining); err != nil {
		return err
	}

	atStart := true
	for {
		kind, budget := a.engine.NextStop(a.state)
		if atStart && !a.justStopped {
			pl, err := a.placer.atSegmentStart(i, a.state.Clock, kind, budget, a.routeLeft)
			if err != nil {
				return err
			}
			if pl.stopNow {
				a.stop(kind, true, pl.risk)
				continue
			}
		}
		atStart = false

		start := a.state.Clock
		dec, err := a.engine.Advance(&a.state, remaining)
		if err != nil {
			return fmt.Errorf("drive segment %d: %w", seg.Index, err)
		}

		driven := remaining
		if dec.Kind != hos.ContinueDriving {
			driven = dec.AtOffset
		}
		if driven > 0 || dec.Kind == hos.ContinueDriving {
			if err := a.drive(i, start, driven); err != nil {
				return err
			}
		}
		remaining -= driven

		if dec.Kind == hos.ContinueDriving {
			return nil
		}

		pl, err := a.placer.atMandate(i, a.state.Clock)
		if err != nil {
			return err
		}
		a.stop(dec.Kind, pl.stopNow, pl.risk)
	}
}

// maybeWait holds the driver before a critical-glare segment when a short
// wait brings the risk under the threshold and no mandatory stop is close
// enough to cover it.
func (a *assembly) maybeWait(i int, drive time.Duration) error {
	if a.safetyWait <= 0 || drive <= 0 {
		return nil
	}
	if _, budget := a.engine.NextStop(a.state); budget <= a.placer.lookAhead && budget < a.routeLeft {
		return nil
	}
	if !a.engine.CanWait(a.state, a.safetyWait) {
		return nil
	}

	before, err := a.risk.at(i, a.state.Clock)
	if err != nil {
		return err
	}
	if before.Level != domain.RiskCritical {
		return nil
	}
	after, err := a.risk.at(i, a.state.Clock.Add(a.safetyWait))
	if err != nil {
		return err
	}
	if after.Score >= a.placer.threshold {
		return nil
	}

	start := a.state.Clock
	if err := a.engine.Wait(&a.state, a.safetyWait); err != nil {
		return fmt.Errorf("safety wait before segment %d: %w", a.segments[i].Index, err)
	}

	score := before.Score
	a.events = append(a.events, domain.ScheduleEvent{
		Kind:            domain.EventSafetyWait,
		Start:           start,
		End:             a.state.Clock,
		DurationMinutes: a.safetyWait.Minutes(),
		Reason:          fmt.Sprintf("Safety wait: glare risk falls from %.0f to %.0f", before.Score, after.Score),
		RiskScore:       &score,
	})
	a.exposure[i].covered = true
	a.lastDriven = -1
	a.lastCovers = true
	return nil
}

func (a *assembly) drive(i int, start time.Time, d time.Duration) error {
	assessed, err := a.risk.at(i, start)
	if err != nil {
		return err
	}

	exp := &a.exposure[i]
	if !exp.assessed || assessed.Score > exp.peak.Score {
		exp.peak = assessed
		exp.assessed = true
	}
	exp.driving += d
	if assessed.Score >= a.placer.threshold {
		exp.highRisk += d
	}
	if !assessed.IsDaytime {
		exp.night += d
	}
	if a.lastCovers {
		exp.covered = true
	}

	idx := a.segments[i].Index
	score := assessed.Score
	a.events = append(a.events, domain.ScheduleEvent{
		Kind:            domain.EventDrive,
		Start:           start,
		End:             a.state.Clock,
		DurationMinutes: d.Minutes(),
		SegmentIndex:    &idx,
		RiskScore:       &score,
	})

	a.routeLeft -= d
	a.lastDriven = i
	a.lastCovers = false
	a.justStopped = false
	return nil
}

func (a *assembly) stop(kind hos.DecisionKind, optimized bool, at domain.RiskAssessment) {
	reason := mandatoryReason(kind, a.state)
	if optimized {
		reason = optimizedReason(kind, at.Score)
	}

	evKind, label := domain.EventBreak, "30-minute break"
	if kind == hos.RestRequired {
		evKind, label = domain.EventRest, "10-hour rest"
	}

	start := a.state.Clock
	d := a.engine.Apply(&a.state, kind)

	score := at.Score
	a.events = append(a.events, domain.ScheduleEvent{
		Kind:            evKind,
		Start:           start,
		End:             a.state.Clock,
		DurationMinutes: d.Minutes(),
		Reason:          reason,
		Optimized:       optimized,
		RiskScore:       &score,
	})
	a.stopNotes = append(a.stopNotes, fmt.Sprintf("%s at %s: %s", label, start.Format(time.RFC3339), reason))

	if optimized && a.lastDriven >= 0 {
		a.exposure[a.lastDriven].covered = true
	}
	a.lastDriven = -1
	a.lastCovers = optimized
	a.justStopped = true
}

func (a *assembly) finish(departAt time.Time, warnings []string) *domain.Schedule {
	var (
		driving  time.Duration
		distance float64
	)
	for _, e := range a.exposure {
		driving += e.driving
	}
	for _, seg := range a.segments {
		distance += seg.DistanceMeters
	}

	summary := summarizeRisk(a.exposure, driving, a.placer.threshold)
	daylight := solar.DaylightAt(a.segments[0].From(), departAt)

	warnings = append(warnings, a.stopNotes...)
	warnings = append(warnings, uncoveredWarnings(a.segments, a.exposure, a.placer.threshold)...)
	warnings = append(warnings, riskRecommendations(summary)...)
	if daylight.Sunset != nil && a.state.Clock.After(*daylight.Sunset) {
		warnings = append(warnings, fmt.Sprintf("Arrival at %s is after sunset (%s) on the departure date",
			a.state.Clock.Format(time.RFC3339), daylight.Sunset.Format(time.RFC3339)))
	}

	arrive := a.state.Clock
	score := safetyScore(a.exposure, driving, a.placer.threshold)
	return &domain.Schedule{
		DepartAt:            departAt,
		ArriveAt:            arrive,
		TotalDrivingSeconds: int64(driving / time.Second),
		TotalElapsedSeconds: int64(arrive.Sub(departAt) / time.Second),
		TotalDistanceMeters: distance,
		Events:              a.events,
		SafetyScore:         score,
		SafetyLevel:         safetyLevel(score),
		HOSCompliant:        true,
		Warnings:            warnings,
		Risk:                summary,
		Daylight:            daylight,
	}
}
