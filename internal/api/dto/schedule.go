package dto

import (
	"driver-schedule-service/internal/domain"
	"time"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) ToDomain() domain.Coordinates {
	return domain.Coordinates{Lat: c.Lat, Lon: c.Lon}
}

type SegmentRequest struct {
	Start                    Coordinates   `json:"start"`
	End                      Coordinates   `json:"end"`
	Path                     []Coordinates `json:"path"`
	DistanceMeters           float64       `json:"distance_meters"`
	DurationSeconds          float64       `json:"duration_seconds"`
	DurationInTrafficSeconds *float64      `json:"duration_in_traffic_seconds"`
	Instruction              string        `json:"instruction"`
}

type CreateScheduleRequest struct {
	Segments []SegmentRequest `json:"segments"`
	DepartAt *time.Time       `json:"depart_at"`
}

// ToDomain numbers segments by their position in the request.
func (r CreateScheduleRequest) ToDomain() []domain.RouteSegment {
	out := make([]domain.RouteSegment, 0, len(r.Segments))
	for i, s := range r.Segments {
		seg := domain.RouteSegment{
			Index:                    i,
			Start:                    s.Start.ToDomain(),
			End:                      s.End.ToDomain(),
			DistanceMeters:           s.DistanceMeters,
			DurationSeconds:          s.DurationSeconds,
			DurationInTrafficSeconds: s.DurationInTrafficSeconds,
			Instruction:              s.Instruction,
		}
		if len(s.Path) > 0 {
			seg.Path = make([]domain.Coordinates, len(s.Path))
			for j, p := range s.Path {
				seg.Path[j] = p.ToDomain()
			}
		}
		out = append(out, seg)
	}
	return out
}

// A route stop is either coordinates or an address to geocode.
type RouteStopRequest struct {
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates"`
}

type RouteScheduleRequest struct {
	Stops    []RouteStopRequest `json:"stops"`
	DepartAt *time.Time         `json:"depart_at"`
}

type ScheduleResponse struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Schedule  *domain.Schedule `json:"schedule"`
}

type ScheduleSummaryResponse struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	DepartAt     time.Time `json:"depart_at"`
	ArriveAt     time.Time `json:"arrive_at"`
	SafetyScore  float64   `json:"safety_score"`
	SafetyLevel  string    `json:"safety_level"`
	StopCount    int       `json:"stop_count"`
	WarningCount int       `json:"warning_count"`
}

type ListScheduleResponse struct {
	Schedules []ScheduleSummaryResponse `json:"schedules"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
