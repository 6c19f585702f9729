package services

import (
	"context"
	"driver-schedule-service/internal/clock"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/hos"
	"driver-schedule-service/internal/risk"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

// scoresByIndex scores segments by their Index and ignores the clock.
type scoresByIndex struct {
	scores map[int]float64
	base   float64
}

func (f scoresByIndex) Evaluate(seg domain.RouteSegment, at time.Time) (domain.RiskAssessment, error) {
	s, ok := f.scores[seg.Index]
	if !ok {
		s = f.base
	}
	return domain.RiskAssessment{Score: s, Level: risk.LevelForScore(s), IsDaytime: true, Explanation: "test"}, nil
}

// glareUntil is critical before a fixed instant and calm after it.
type glareUntil struct {
	until time.Time
}

func (g glareUntil) Evaluate(seg domain.RouteSegment, at time.Time) (domain.RiskAssessment, error) {
	if at.Before(g.until) {
		return domain.RiskAssessment{Score: 90, Level: domain.RiskCritical, IsDaytime: true, Explanation: "low sun ahead"}, nil
	}
	return domain.RiskAssessment{Score: 20, Level: domain.RiskLow, IsDaytime: true, Explanation: "high sun"}, nil
}

var (
	depart08 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	depart06 = time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)
	earlier  = clock.Fixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
)

// route builds n equal segments heading east along 35N.
func route(n int, each time.Duration) []domain.RouteSegment {
	segs := make([]domain.RouteSegment, n)
	for i := range segs {
		segs[i] = domain.RouteSegment{
			Index:           i,
			Start:           domain.Coordinates{Lon: -110 + float64(i)*0.2, Lat: 35},
			End:             domain.Coordinates{Lon: -110 + float64(i+1)*0.2, Lat: 35},
			DistanceMeters:  18000,
			DurationSeconds: each.Seconds(),
		}
	}
	return segs
}

func planner(eval risk.Evaluator) *SchedulePlanner {
	return NewSchedulePlanner(PlannerOptions{Clock: earlier, Evaluator: eval})
}

func mustCompute(t *testing.T, p *SchedulePlanner, segs []domain.RouteSegment, departAt time.Time) *domain.Schedule {
	t.Helper()
	sched, err := p.ComputeSchedule(context.Background(), segs, departAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sched
}

func stopDurations(s *domain.Schedule) time.Duration {
	var d time.Duration
	for _, e := range s.Stops() {
		d += e.Duration()
	}
	return d
}

func TestComputeScheduleShortRouteHasNoStops(t *testing.T) {
	sched := mustCompute(t, planner(scoresByIndex{base: 20}), route(1, 6*time.Hour), depart08)

	if n := len(sched.Stops()); n != 0 {
		t.Fatalf("stops = %d, want 0", n)
	}
	if sched.TotalElapsedSeconds != 6*3600 {
		t.Fatalf("elapsed = %d, want %d", sched.TotalElapsedSeconds, 6*3600)
	}
	if !sched.ArriveAt.Equal(depart08.Add(6 * time.Hour)) {
		t.Fatalf("arrive = %v", sched.ArriveAt)
	}
	if !sched.HOSCompliant {
		t.Fatalf("schedule not marked compliant")
	}
	if sched.SafetyScore != 100 {
		t.Fatalf("safety score = %v, want 100", sched.SafetyScore)
	}
	if sched.SafetyLevel != SafetyExcellent {
		t.Fatalf("safety level = %q, want %q", sched.SafetyLevel, SafetyExcellent)
	}
	if n := len(sched.Warnings); n == 0 || !strings.HasPrefix(sched.Warnings[n-1], "Excellent lighting") {
		t.Fatalf("warnings = %q, want excellent lighting last", sched.Warnings)
	}
}

func TestComputeSchedulePullsBreakOntoHighRiskWindow(t *testing.T) {
	// 36 x 20min = 12h; segment 23 starts at 7h40m.
	segs := route(36, 20*time.Minute)
	sched := mustCompute(t, planner(scoresByIndex{base: 20, scores: map[int]float64{23: 85}}), segs, depart06)

	stops := sched.Stops()
	if len(stops) == 0 {
		t.Fatalf("expected stops")
	}
	brk := stops[0]
	if brk.Kind != domain.EventBreak {
		t.Fatalf("first stop = %s, want break", brk.Kind)
	}
	if want := depart06.Add(7*time.Hour + 40*time.Minute); !brk.Start.Equal(want) {
		t.Fatalf("break start = %v, want %v", brk.Start, want)
	}
	if !brk.Optimized {
		t.Fatalf("break not optimized")
	}
	if !strings.Contains(brk.Reason, "Strategic break during high-risk period (risk: 85)") {
		t.Fatalf("reason = %q", brk.Reason)
	}
	if brk.RiskScore == nil || *brk.RiskScore < risk.HighRiskThreshold {
		t.Fatalf("risk score = %v", brk.RiskScore)
	}
	if brk.DurationMinutes != 30 {
		t.Fatalf("break minutes = %v", brk.DurationMinutes)
	}
	if sched.Risk.HighRiskSegments != 1 {
		t.Fatalf("high risk segments = %d, want 1", sched.Risk.HighRiskSegments)
	}
	if sched.SafetyScore != 100 {
		t.Fatalf("safety score = %v, want 100", sched.SafetyScore)
	}
}

func TestComputeScheduleKeepsBreakWhenRiskIsOutOfReach(t *testing.T) {
	// High risk at 11h, three hours past the 8h mark.
	segs := route(36, 20*time.Minute)
	sched := mustCompute(t, planner(scoresByIndex{base: 20, scores: map[int]float64{33: 85}}), segs, depart06)

	brk := sched.Stops()[0]
	if brk.Kind != domain.EventBreak {
		t.Fatalf("first stop = %s, want break", brk.Kind)
	}
	if want := depart06.Add(8 * time.Hour); !brk.Start.Equal(want) {
		t.Fatalf("break start = %v, want %v", brk.Start, want)
	}
	if brk.Optimized {
		t.Fatalf("break should not be optimized")
	}
	if !strings.HasPrefix(brk.Reason, "Mandatory 30-minute break") {
		t.Fatalf("reason = %q", brk.Reason)
	}
}

func TestComputeSchedulePullsRestOntoHighRiskWindow(t *testing.T) {
	// 15 x 1h. The break falls at 8h, the rest is due at 11h driving and
	// segment 9 starts at 9h driving, two hours early.
	segs := route(15, time.Hour)
	sched := mustCompute(t, planner(scoresByIndex{base: 20, scores: map[int]float64{9: 85}}), segs, depart06)

	stops := sched.Stops()
	if len(stops) != 2 {
		t.Fatalf("stops = %d, want 2", len(stops))
	}
	if stops[0].Kind != domain.EventBreak || stops[0].Optimized {
		t.Fatalf("first stop = %+v, want mandatory break", stops[0])
	}
	rest := stops[1]
	if rest.Kind != domain.EventRest {
		t.Fatalf("second stop = %s, want rest", rest.Kind)
	}
	if want := depart06.Add(9*time.Hour + 30*time.Minute); !rest.Start.Equal(want) {
		t.Fatalf("rest start = %v, want %v", rest.Start, want)
	}
	if !rest.Optimized {
		t.Fatalf("rest not optimized")
	}
	if rest.Reason != "Optimized rest during high-risk period (risk: 85)" {
		t.Fatalf("reason = %q", rest.Reason)
	}
	if rest.DurationMinutes != 600 {
		t.Fatalf("rest minutes = %v", rest.DurationMinutes)
	}
	if sched.SafetyScore != 100 {
		t.Fatalf("safety score = %v, want 100", sched.SafetyScore)
	}
	assertLimits(t, sched)
}

func TestComputeScheduleKeepsRestWhenRiskIsOutOfReach(t *testing.T) {
	// 36 x 20min = 12h. Segment 25 starts at 8h20m driving, 2h40m before the
	// rest falls due at 11h.
	segs := route(36, 20*time.Minute)
	sched := mustCompute(t, planner(scoresByIndex{base: 20, scores: map[int]float64{25: 85}}), segs, depart06)

	stops := sched.Stops()
	if len(stops) != 2 {
		t.Fatalf("stops = %d, want 2", len(stops))
	}
	rest := stops[1]
	if rest.Kind != domain.EventRest {
		t.Fatalf("second stop = %s, want rest", rest.Kind)
	}
	// 11h driving plus the 30-minute break.
	if want := depart06.Add(11*time.Hour + 30*time.Minute); !rest.Start.Equal(want) {
		t.Fatalf("rest start = %v, want %v", rest.Start, want)
	}
	if rest.Optimized {
		t.Fatalf("rest should not be optimized")
	}
	if rest.Reason != "Mandatory 10-hour rest: 11-hour driving limit reached" {
		t.Fatalf("reason = %q", rest.Reason)
	}
	assertLimits(t, sched)
}

func TestComputeScheduleBreakToleranceEdge(t *testing.T) {
	tests := []struct {
		name      string
		lead      time.Duration
		start     time.Duration
		optimized bool
	}{
		{"window exactly one hour early", 7 * time.Hour, 7 * time.Hour, true},
		{"window one hour and a second early", 7*time.Hour - time.Second, 8 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := route(3, time.Hour)
			segs[0].DurationSeconds = tt.lead.Seconds()
			segs[1].DurationSeconds = (20 * time.Minute).Seconds()
			segs[2].DurationSeconds = (5 * time.Hour).Seconds()

			sched := mustCompute(t, planner(scoresByIndex{base: 20, scores: map[int]float64{1: 85}}), segs, depart06)

			brk := sched.Stops()[0]
			if brk.Kind != domain.EventBreak {
				t.Fatalf("first stop = %s, want break", brk.Kind)
			}
			if want := depart06.Add(tt.start); !brk.Start.Equal(want) {
				t.Fatalf("break start = %v, want %v", brk.Start, want)
			}
			if brk.Optimized != tt.optimized {
				t.Fatalf("optimized = %v, want %v", brk.Optimized, tt.optimized)
			}
			assertLimits(t, sched)
		})
	}
}

func TestComputeScheduleRestsWhenDutyWindowCloses(t *testing.T) {
	// A 3h wait at departure puts the duty window ahead of the driving limit:
	// 3h wait + 8h drive + 30min break leaves 2h30m, reached at 10h30m driving.
	segs := route(12, time.Hour)
	p := NewSchedulePlanner(PlannerOptions{
		Clock:      earlier,
		SafetyWait: 3 * time.Hour,
		Evaluator:  glareUntil{until: depart06.Add(time.Hour)},
	})
	sched := mustCompute(t, p, segs, depart06)

	stops := sched.Stops()
	if len(stops) != 3 {
		t.Fatalf("stops = %d, want 3: %+v", len(stops), stops)
	}
	if stops[0].Kind != domain.EventSafetyWait || stops[0].DurationMinutes != 180 {
		t.Fatalf("first stop = %+v, want 3h safety wait", stops[0])
	}
	if stops[1].Kind != domain.EventBreak || !stops[1].Start.Equal(depart06.Add(11*time.Hour)) {
		t.Fatalf("second stop = %+v, want break at +11h", stops[1])
	}

	rest := stops[2]
	if rest.Kind != domain.EventRest {
		t.Fatalf("third stop = %s, want rest", rest.Kind)
	}
	if want := depart06.Add(14 * time.Hour); !rest.Start.Equal(want) {
		t.Fatalf("rest start = %v, want %v", rest.Start, want)
	}
	if rest.Reason != "Mandatory 10-hour rest: 14-hour duty window reached" {
		t.Fatalf("reason = %q", rest.Reason)
	}
	if sched.TotalDrivingSeconds != 12*3600 {
		t.Fatalf("driving = %d, want %d", sched.TotalDrivingSeconds, 12*3600)
	}
	assertLimits(t, sched)
}

func TestComputeScheduleLongRouteRests(t *testing.T) {
	// 30h of driving.
	segs := route(90, 20*time.Minute)
	sched := mustCompute(t, planner(scoresByIndex{base: 20}), segs, depart06)

	rests := 0
	for _, e := range sched.Stops() {
		if e.Kind == domain.EventRest {
			rests++
			if e.DurationMinutes != 600 {
				t.Fatalf("rest minutes = %v", e.DurationMinutes)
			}
		}
	}
	if rests == 0 {
		t.Fatalf("expected at least one rest")
	}

	if sched.TotalDrivingSeconds != 30*3600 {
		t.Fatalf("driving = %d, want %d", sched.TotalDrivingSeconds, 30*3600)
	}
	want := time.Duration(sched.TotalDrivingSeconds)*time.Second + stopDurations(sched)
	if got := time.Duration(sched.TotalElapsedSeconds) * time.Second; got != want {
		t.Fatalf("elapsed = %v, want driving + stops = %v", got, want)
	}
	if got := sched.Events[len(sched.Events)-1].End.Sub(sched.DepartAt); got != want {
		t.Fatalf("last event ends %v after departure, want %v", got, want)
	}
	assertLimits(t, sched)
}

func TestComputeScheduleEmptyRoute(t *testing.T) {
	_, err := planner(scoresByIndex{}).ComputeSchedule(context.Background(), nil, depart06)
	if !errors.Is(err, domain.ErrEmptyRoute) {
		t.Fatalf("err = %v, want ErrEmptyRoute", err)
	}
	if kind := domain.ErrorKind(err); kind != domain.KindEmptyRoute {
		t.Fatalf("kind = %q", kind)
	}
}

func TestComputeScheduleNoStopsUpToEightHours(t *testing.T) {
	cases := []struct {
		name string
		segs []domain.RouteSegment
	}{
		{"one hour", route(1, time.Hour)},
		{"just under", route(1, 8*time.Hour-time.Second)},
		{"exactly eight single", route(1, 8*time.Hour)},
		{"exactly eight split", route(24, 20*time.Minute)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched := mustCompute(t, planner(scoresByIndex{base: 85}), tc.segs, depart06)
			if n := len(sched.Stops()); n != 0 {
				t.Fatalf("stops = %d, want 0", n)
			}
		})
	}
}

func TestComputeScheduleSplitsSegmentAtBreak(t *testing.T) {
	sched := mustCompute(t, planner(scoresByIndex{base: 20}), route(1, 10*time.Hour), depart06)

	if len(sched.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(sched.Events))
	}
	first, brk, second := sched.Events[0], sched.Events[1], sched.Events[2]
	if first.Duration() != 8*time.Hour || second.Duration() != 2*time.Hour {
		t.Fatalf("drive pieces = %v and %v", first.Duration(), second.Duration())
	}
	if *first.SegmentIndex != 0 || *second.SegmentIndex != 0 {
		t.Fatalf("pieces should both belong to segment 0")
	}
	if brk.Kind != domain.EventBreak || !brk.Start.Equal(depart06.Add(8*time.Hour)) {
		t.Fatalf("break = %+v", brk)
	}
}

func TestComputeScheduleBreakJustOverEightHours(t *testing.T) {
	sched := mustCompute(t, planner(scoresByIndex{base: 20}), route(1, 8*time.Hour+time.Second), depart06)
	if n := len(sched.Stops()); n != 1 {
		t.Fatalf("stops = %d, want 1", n)
	}
}

func TestComputeScheduleRejectsBadInput(t *testing.T) {
	negative := route(2, time.Hour)
	negative[1].DurationSeconds = -5

	infinite := route(1, time.Hour)
	traffic := math.Inf(1)
	infinite[0].DurationInTrafficSeconds = &traffic

	badCoord := route(1, time.Hour)
	badCoord[0].Start.Lat = math.NaN()

	huge := route(1, time.Hour)
	huge[0].DurationSeconds = 1e300

	wraps := route(1, time.Hour)
	wraps[0].DurationSeconds = 2e10

	hugeTraffic := route(1, time.Hour)
	big := domain.MaxSegmentSeconds + 1
	hugeTraffic[0].DurationInTrafficSeconds = &big

	tooLong := route(2, 20*24*time.Hour)

	tests := []struct {
		name     string
		segs     []domain.RouteSegment
		departAt time.Time
		want     error
	}{
		{"negative duration", negative, depart06, domain.ErrInvalidSegment},
		{"infinite traffic duration", infinite, depart06, domain.ErrInvalidSegment},
		{"bad coordinate", badCoord, depart06, domain.ErrInvalidInput},
		{"astronomical duration", huge, depart06, domain.ErrInvalidSegment},
		{"duration past the segment cap", wraps, depart06, domain.ErrInvalidSegment},
		{"traffic duration past the segment cap", hugeTraffic, depart06, domain.ErrInvalidSegment},
		{"route past the total cap", tooLong, depart06, domain.ErrInvalidInput},
		{"missing departure", route(1, time.Hour), time.Time{}, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := planner(scoresByIndex{}).ComputeSchedule(context.Background(), tt.segs, tt.departAt)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if sched != nil {
				t.Fatalf("expected no schedule on error")
			}
		})
	}
}

func TestComputeScheduleDepartureInPast(t *testing.T) {
	later := clock.Fixed(depart06.Add(24 * time.Hour))

	strict := NewSchedulePlanner(PlannerOptions{Clock: later, RequireFutureDeparture: true, Evaluator: scoresByIndex{}})
	if _, err := strict.ComputeSchedule(context.Background(), route(1, time.Hour), depart06); !errors.Is(err, domain.ErrDepartureInPast) {
		t.Fatalf("err = %v, want ErrDepartureInPast", err)
	}

	lenient := NewSchedulePlanner(PlannerOptions{Clock: later, Evaluator: scoresByIndex{}})
	sched := mustCompute(t, lenient, route(1, time.Hour), depart06)
	if len(sched.Warnings) == 0 || !strings.Contains(sched.Warnings[0], "Departure time is in the past") {
		t.Fatalf("warnings = %q", sched.Warnings)
	}
}

func TestComputeScheduleHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := planner(scoresByIndex{}).ComputeSchedule(ctx, route(3, time.Hour), depart06)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestComputeScheduleIsDeterministic(t *testing.T) {
	segs := route(60, 30*time.Minute)
	p := NewSchedulePlanner(PlannerOptions{Clock: earlier})

	a, err := json.Marshal(mustCompute(t, p, segs, depart06))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(mustCompute(t, p, segs, depart06))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("schedules differ between runs")
	}
}

func TestComputeScheduleSunlightRouteStaysCompliant(t *testing.T) {
	// Eastbound at dawn across several days with the real sun model.
	segs := route(100, 25*time.Minute)
	dawn := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	sched := mustCompute(t, NewSchedulePlanner(PlannerOptions{Clock: earlier}), segs, dawn)

	assertLimits(t, sched)
	for _, e := range sched.Stops() {
		if e.Optimized && (e.RiskScore == nil || *e.RiskScore < risk.HighRiskThreshold) {
			t.Fatalf("optimized %s at %v has risk %v", e.Kind, e.Start, e.RiskScore)
		}
	}
	if sched.Risk.OverallLevel == "" {
		t.Fatalf("risk summary missing level")
	}
}

func TestComputeScheduleWarnsAboutUncoveredRisk(t *testing.T) {
	// 18 x 20min = 6h, no stop is needed so segment 2 stays uncovered.
	sched := mustCompute(t, planner(scoresByIndex{base: 20, scores: map[int]float64{2: 90}}), route(18, 20*time.Minute), depart06)

	found := false
	for _, w := range sched.Warnings {
		if strings.HasPrefix(w, "Segment 2:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %q, want one for segment 2", sched.Warnings)
	}
	if sched.SafetyScore != 37.8 {
		t.Fatalf("safety score = %v, want 37.8", sched.SafetyScore)
	}
	if sched.SafetyLevel != SafetyHazardous {
		t.Fatalf("safety level = %q, want %q", sched.SafetyLevel, SafetyHazardous)
	}
	if sched.Risk.CriticalSegments != 1 {
		t.Fatalf("critical segments = %d, want 1", sched.Risk.CriticalSegments)
	}
}

func TestComputeScheduleSafetyWait(t *testing.T) {
	segs := route(1, 2*time.Hour)
	p := NewSchedulePlanner(PlannerOptions{
		Clock:      earlier,
		SafetyWait: 30 * time.Minute,
		Evaluator:  glareUntil{until: depart06.Add(20 * time.Minute)},
	})
	sched := mustCompute(t, p, segs, depart06)

	if len(sched.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(sched.Events))
	}
	wait := sched.Events[0]
	if wait.Kind != domain.EventSafetyWait || wait.DurationMinutes != 30 {
		t.Fatalf("first event = %+v", wait)
	}
	if sched.TotalElapsedSeconds != int64((2*time.Hour+30*time.Minute)/time.Second) {
		t.Fatalf("elapsed = %d", sched.TotalElapsedSeconds)
	}
	if sched.Risk.HighRiskSegments != 0 {
		t.Fatalf("high risk segments = %d, want 0 after waiting", sched.Risk.HighRiskSegments)
	}
}

// assertLimits walks the schedule and checks every limit independently of
// hos.Replay.
func assertLimits(t *testing.T, sched *domain.Schedule) {
	t.Helper()

	var sinceBreak, sinceRest, onDuty time.Duration
	prevEnd := sched.DepartAt
	for i, e := range sched.Events {
		if !e.Start.Equal(prevEnd) {
			t.Fatalf("event %d starts at %v, previous ended %v", i, e.Start, prevEnd)
		}
		prevEnd = e.End

		switch e.Kind {
		case domain.EventDrive:
			sinceBreak += e.Duration()
			sinceRest += e.Duration()
			onDuty += e.Duration()
		case domain.EventBreak:
			if e.Duration() != hos.BreakDuration {
				t.Fatalf("event %d break lasts %v", i, e.Duration())
			}
			sinceBreak = 0
			onDuty += e.Duration()
		case domain.EventRest:
			if e.Duration() != hos.RestDuration {
				t.Fatalf("event %d rest lasts %v", i, e.Duration())
			}
			sinceBreak, sinceRest, onDuty = 0, 0, 0
		case domain.EventSafetyWait:
			onDuty += e.Duration()
		}

		if sinceBreak > hos.MaxDrivingBeforeBreak {
			t.Fatalf("event %d: %v driving since break", i, sinceBreak)
		}
		if sinceRest > hos.MaxDrivingPerWindow {
			t.Fatalf("event %d: %v driving in window", i, sinceRest)
		}
		if onDuty > hos.MaxOnDutyWindow {
			t.Fatalf("event %d: %v on duty", i, onDuty)
		}
	}
}
