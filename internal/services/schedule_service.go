package services

import (
	"context"
	"driver-schedule-service/internal/clock"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/metrics"
	"driver-schedule-service/internal/platform/obs"
	"driver-schedule-service/internal/ports"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// One stop of a trip, given either as coordinates or as an address to geocode.
type RoutePoint struct {
	Address     string
	Coordinates *domain.Coordinates
}

type PlanRouteRequest struct {
	// Origin first, destination last.
	Stops []RoutePoint
	// Zero means now.
	DepartAt time.Time
}

// ScheduleService ties the planner to its collaborators: the routing
// provider, the geocoder and the schedule repository. Any of them may be nil
// when the matching operation is not used.
type ScheduleService struct {
	planner  *SchedulePlanner
	routes   ports.RouteProvider
	geocoder ports.Geocoder
	repo     ports.ScheduleRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
	clock    clock.Clock
	newID    func() string
}

type ScheduleServiceDeps struct {
	Planner  *SchedulePlanner
	Routes   ports.RouteProvider
	Geocoder ports.Geocoder
	Repo     ports.ScheduleRepository
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Clock    clock.Clock
}

func NewScheduleService(d ScheduleServiceDeps) *ScheduleService {
	s := &ScheduleService{
		planner:  d.Planner,
		routes:   d.Routes,
		geocoder: d.Geocoder,
		repo:     d.Repo,
		metrics:  d.Metrics,
		logger:   d.Logger,
		clock:    d.Clock,
		newID:    func() string { return uuid.NewString() },
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.planner == nil {
		s.planner = NewSchedulePlanner(PlannerOptions{Clock: s.clock})
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateFromSegments computes a schedule for caller-supplied segments and
// stores it.
func (s *ScheduleService) CreateFromSegments(
	ctx context.Context,
	segments []domain.RouteSegment,
	departAt time.Time,
) (_ ports.StoredSchedule, err error) {
	defer obs.Time(ctx, s.logger, "schedules.CreateFromSegments")(&err)

	if departAt.IsZero() {
		departAt = s.now()
	}

	sched, err := s.planner.ComputeSchedule(ctx, segments, departAt)
	if err != nil {
		s.metrics.ObserveError(err)
		return ports.StoredSchedule{}, fmt.Errorf("create schedule: %w", err)
	}
	s.metrics.ObserveSchedule(sched)

	stored := ports.StoredSchedule{ID: s.newID(), CreatedAt: s.now(), Schedule: sched}
	if s.repo != nil {
		if err := s.repo.Save(ctx, stored); err != nil {
			return ports.StoredSchedule{}, fmt.Errorf("create schedule: %w", err)
		}
	}
	return stored, nil
}

// CreateFromRoute resolves the stops, fetches the route and schedules it.
func (s *ScheduleService) CreateFromRoute(ctx context.Context, req PlanRouteRequest) (_ ports.StoredSchedule, err error) {
	defer obs.Time(ctx, s.logger, "schedules.CreateFromRoute")(&err)

	if s.routes == nil {
		return ports.StoredSchedule{}, errors.New("create route schedule: no route provider configured")
	}
	if len(req.Stops) < 2 {
		return ports.StoredSchedule{}, fmt.Errorf("create route schedule: need origin and destination, got %d stops: %w", len(req.Stops), domain.ErrInvalidInput)
	}

	coords, err := s.resolveStops(ctx, req.Stops)
	if err != nil {
		return ports.StoredSchedule{}, fmt.Errorf("create route schedule: %w", err)
	}

	routeReq := ports.RouteRequest{
		Origin:      coords[0],
		Destination: coords[len(coords)-1],
		Waypoints:   coords[1 : len(coords)-1],
	}
	segments, err := s.routes.GetRoute(ctx, routeReq)
	if err != nil {
		return ports.StoredSchedule{}, fmt.Errorf("create route schedule: %w", err)
	}

	return s.CreateFromSegments(ctx, segments, req.DepartAt)
}

type geocodeResult struct {
	index  int
	coords domain.Coordinates
	err    error
}

// resolveStops geocodes address stops concurrently, keeping stop order.
func (s *ScheduleService) resolveStops(ctx context.Context, stops []RoutePoint) ([]domain.Coordinates, error) {
	out := make([]domain.Coordinates, len(stops))

	pending := make([]int, 0, len(stops))
	for i, st := range stops {
		switch {
		case st.Coordinates != nil:
			if err := st.Coordinates.Validate(); err != nil {
				return nil, fmt.Errorf("stop %d: %w", i, err)
			}
			out[i] = *st.Coordinates
		case strings.TrimSpace(st.Address) != "":
			pending = append(pending, i)
		default:
			return nil, fmt.Errorf("stop %d has neither coordinates nor address: %w", i, domain.ErrInvalidInput)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}
	if s.geocoder == nil {
		return nil, errors.New("address stops given but no geocoder configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, 4)
	resultsCh := make(chan geocodeResult, len(pending))
	var wg sync.WaitGroup

	for _, i := range pending {
		wg.Add(1)
		go func(idx int, address string) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			c, err := s.geocoder.Geocode(ctx, address)
			if err != nil {
				resultsCh <- geocodeResult{index: idx, err: fmt.Errorf("stop %d %q: %w", idx, address, err)}
				cancel()
				return
			}
			resultsCh <- geocodeResult{index: idx, coords: c}
		}(i, stops[i].Address)
	}

	wg.Wait()
	close(resultsCh)

	var firstErr error
	for res := range resultsCh {
		if res.err != nil {
			// Lookups cut short by cancel() hide the failure that caused it.
			if firstErr == nil || errors.Is(firstErr, context.Canceled) {
				firstErr = res.err
			}
			continue
		}
		out[res.index] = res.coords
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (s *ScheduleService) Get(ctx context.Context, id string) (ports.StoredSchedule, error) {
	if s.repo == nil {
		return ports.StoredSchedule{}, fmt.Errorf("get schedule %s: %w", id, ports.ErrNotFound)
	}
	return s.repo.Get(ctx, id)
}

func (s *ScheduleService) ListRecent(ctx context.Context, limit int) ([]ports.StoredSchedule, error) {
	if s.repo == nil {
		return []ports.StoredSchedule{}, nil
	}
	return s.repo.ListRecent(ctx, limit)
}

// Prune deletes schedules created more than age ago.
func (s *ScheduleService) Prune(ctx context.Context, age time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.DeleteOlderThan(ctx, s.now().Add(-age))
}

func (s *ScheduleService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}
