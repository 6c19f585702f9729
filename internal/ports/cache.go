package ports

import (
	"context"
	"driver-schedule-service/internal/domain"
)

// Stores routing results keyed by a normalized request key.
type RouteCache interface {
	// ok is false on a miss.
	Get(ctx context.Context, key string) (segments []domain.RouteSegment, ok bool, err error)
	Put(ctx context.Context, key string, segments []domain.RouteSegment) error
}

// Stores address -> coordinate lookups. Address keys are normalized by the caller.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
