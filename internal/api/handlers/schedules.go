package handlers

import (
	"context"
	"driver-schedule-service/internal/api/dto"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/ports"
	"driver-schedule-service/internal/services"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ScheduleService is the part of services.ScheduleService the handlers use.
type ScheduleService interface {
	CreateFromSegments(ctx context.Context, segments []domain.RouteSegment, departAt time.Time) (ports.StoredSchedule, error)
	CreateFromRoute(ctx context.Context, req services.PlanRouteRequest) (ports.StoredSchedule, error)
	Get(ctx context.Context, id string) (ports.StoredSchedule, error)
	ListRecent(ctx context.Context, limit int) ([]ports.StoredSchedule, error)
}

type ScheduleHandler struct {
	responder
	Service ScheduleService
}

func NewScheduleHandler(svc ScheduleService, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{responder: responder{logger: logger}, Service: svc}
}

// Create schedules caller-supplied route segments.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateScheduleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var depart time.Time
	if req.DepartAt != nil {
		depart = *req.DepartAt
	}

	stored, err := h.Service.CreateFromSegments(r.Context(), req.ToDomain(), depart)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeCreated(w, r, stored)
}

// CreateFromRoute looks up the route between the given stops and schedules it.
func (h *ScheduleHandler) CreateFromRoute(w http.ResponseWriter, r *http.Request) {
	var req dto.RouteScheduleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	svcReq := services.PlanRouteRequest{Stops: make([]services.RoutePoint, 0, len(req.Stops))}
	if req.DepartAt != nil {
		svcReq.DepartAt = *req.DepartAt
	}
	for _, s := range req.Stops {
		p := services.RoutePoint{Address: s.Address}
		if s.Coordinates != nil {
			c := s.Coordinates.ToDomain()
			p.Coordinates = &c
		}
		svcReq.Stops = append(svcReq.Stops, p)
	}

	stored, err := h.Service.CreateFromRoute(r.Context(), svcReq)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeCreated(w, r, stored)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.KindInvalidInput, "id must be a UUID")
		return
	}

	stored, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, dto.ScheduleResponse{
		ID:        stored.ID,
		CreatedAt: stored.CreatedAt,
		Schedule:  stored.Schedule,
	})
}

// List returns summaries of the most recent schedules, newest first.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			h.writeError(w, r, http.StatusBadRequest, domain.KindInvalidInput, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	list, err := h.Service.ListRecent(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res := dto.ListScheduleResponse{Schedules: make([]dto.ScheduleSummaryResponse, 0, len(list))}
	for _, s := range list {
		sum := dto.ScheduleSummaryResponse{ID: s.ID, CreatedAt: s.CreatedAt}
		if s.Schedule != nil {
			sum.DepartAt = s.Schedule.DepartAt
			sum.ArriveAt = s.Schedule.ArriveAt
			sum.SafetyScore = s.Schedule.SafetyScore
			sum.SafetyLevel = s.Schedule.SafetyLevel
			sum.StopCount = len(s.Schedule.Stops())
			sum.WarningCount = len(s.Schedule.Warnings)
		}
		res.Schedules = append(res.Schedules, sum)
	}

	h.writeJSON(w, r, http.StatusOK, res)
}

func (h *ScheduleHandler) writeCreated(w http.ResponseWriter, r *http.Request, stored ports.StoredSchedule) {
	w.Header().Set("Location", "/schedules/"+stored.ID)
	h.writeJSON(w, r, http.StatusCreated, dto.ScheduleResponse{
		ID:        stored.ID,
		CreatedAt: stored.CreatedAt,
		Schedule:  stored.Schedule,
	})
}
