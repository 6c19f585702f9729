package ports

import (
	"context"
	"driver-schedule-service/internal/domain"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// A computed schedule as kept by a repository.
type StoredSchedule struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Schedule  *domain.Schedule `json:"schedule"`
}

// Port: persistence for past schedules.
type ScheduleRepository interface {
	Save(ctx context.Context, s StoredSchedule) error
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (StoredSchedule, error)
	// ListRecent returns up to limit schedules, newest first.
	ListRecent(ctx context.Context, limit int) ([]StoredSchedule, error)
	// DeleteOlderThan removes schedules created before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
