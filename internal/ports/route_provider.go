package ports

import (
	"context"
	"driver-schedule-service/internal/domain"
	"errors"
)

// A trip to be routed: origin, optional intermediate stops, destination.
type RouteRequest struct {
	Origin      domain.Coordinates   `json:"origin"`
	Destination domain.Coordinates   `json:"destination"`
	Waypoints   []domain.Coordinates `json:"waypoints,omitempty"`
}

// Points returns origin, waypoints and destination in travel order.
func (r RouteRequest) Points() []domain.Coordinates {
	out := make([]domain.Coordinates, 0, len(r.Waypoints)+2)
	out = append(out, r.Origin)
	out = append(out, r.Waypoints...)
	return append(out, r.Destination)
}

// Contract for retrieving the ordered segments of a driving route.
type RouteProvider interface {
	GetRoute(ctx context.Context, req RouteRequest) ([]domain.RouteSegment, error)
}

// Resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}

// ErrUpstream marks failures of an external routing or geocoding service.
var ErrUpstream = errors.New("upstream provider failure")
