package domain

import (
	"fmt"
	"math"
	"time"
)

// Upper bounds on travel time. A single segment and a whole route are both
// capped at four weeks of driving, far below where a time.Duration overflows.
const (
	MaxSegmentSeconds = 28 * 24 * 3600.0
	MaxRouteSeconds   = 28 * 24 * 3600.0
)

// Represents a contiguous piece of a planned route as returned by a routing
// provider. Segments are immutable input: the core only reads them.
type RouteSegment struct {
	Index          int           `json:"index"`
	Start          Coordinates   `json:"start"`
	End            Coordinates   `json:"end"`
	Path           []Coordinates `json:"path,omitempty"`
	DistanceMeters float64       `json:"distance_meters"`
	// Nominal travel time as reported by the provider.
	DurationSeconds float64 `json:"duration_seconds"`
	// Traffic-adjusted travel time, when the provider supplies one.
	DurationInTrafficSeconds *float64 `json:"duration_in_traffic_seconds,omitempty"`
	Instruction              string   `json:"instruction,omitempty"`
}

// Validate checks coordinates, distance and durations.
func (s RouteSegment) Validate() error {
	if err := s.Start.Validate(); err != nil {
		return fmt.Errorf("segment %d start: %w", s.Index, err)
	}
	if err := s.End.Validate(); err != nil {
		return fmt.Errorf("segment %d end: %w", s.Index, err)
	}
	for i, p := range s.Path {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("segment %d path point %d: %w", s.Index, i, err)
		}
	}

	if !finiteNonNegative(s.DistanceMeters) {
		return fmt.Errorf("segment %d distance %v: %w", s.Index, s.DistanceMeters, ErrInvalidSegment)
	}
	if !finiteNonNegative(s.DurationSeconds) {
		return fmt.Errorf("segment %d duration %v: %w", s.Index, s.DurationSeconds, ErrInvalidSegment)
	}
	if s.DurationSeconds > MaxSegmentSeconds {
		return fmt.Errorf("segment %d duration %v exceeds %v seconds: %w", s.Index, s.DurationSeconds, MaxSegmentSeconds, ErrInvalidSegment)
	}
	if s.DurationInTrafficSeconds != nil {
		traffic := *s.DurationInTrafficSeconds
		if !finiteNonNegative(traffic) {
			return fmt.Errorf("segment %d traffic duration %v: %w", s.Index, traffic, ErrInvalidSegment)
		}
		if traffic > MaxSegmentSeconds {
			return fmt.Errorf("segment %d traffic duration %v exceeds %v seconds: %w", s.Index, traffic, MaxSegmentSeconds, ErrInvalidSegment)
		}
	}

	return nil
}

// DriveSeconds prefers the traffic-adjusted duration when present.
func (s RouteSegment) DriveSeconds() float64 {
	if s.DurationInTrafficSeconds != nil {
		return *s.DurationInTrafficSeconds
	}
	return s.DurationSeconds
}

// DriveDuration is DriveSeconds rounded to whole seconds.
func (s RouteSegment) DriveDuration() time.Duration {
	return time.Duration(math.Round(s.DriveSeconds())) * time.Second
}

// From returns the first point of the segment geometry.
func (s RouteSegment) From() Coordinates {
	if len(s.Path) > 0 {
		return s.Path[0]
	}
	return s.Start
}

// To returns the last point of the segment geometry.
func (s RouteSegment) To() Coordinates {
	if len(s.Path) > 0 {
		return s.Path[len(s.Path)-1]
	}
	return s.End
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
