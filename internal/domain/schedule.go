package domain

import "time"

type EventKind string

const (
	EventDrive      EventKind = "drive"
	EventBreak      EventKind = "break"
	EventRest       EventKind = "rest"
	EventSafetyWait EventKind = "safety_wait"
)

// One entry of a driver schedule. Drive events carry the segment they cover;
// stop events carry their duration in minutes, the reason they were taken and
// whether their timing was moved to overlap a high-risk window.
type ScheduleEvent struct {
	Kind            EventKind `json:"kind"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"duration_minutes"`
	// Set for drive events only.
	SegmentIndex *int     `json:"segment_index,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Optimized    bool     `json:"optimized"`
	RiskScore    *float64 `json:"risk_score,omitempty"`
}

// IsStop reports whether the event is a break, rest or safety wait.
func (e ScheduleEvent) IsStop() bool {
	return e.Kind != EventDrive
}

// Duration is End - Start.
func (e ScheduleEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Aggregate sun-glare exposure over the driven segments.
type RiskSummary struct {
	AverageScore     float64   `json:"average_score"`
	OverallLevel     RiskLevel `json:"overall_level"`
	HighRiskSegments int       `json:"high_risk_segments"`
	CriticalSegments int       `json:"critical_segments"`
	// Share of driving time with the sun below the horizon, 0..1.
	NightShare float64 `json:"night_share"`
}

// Sunrise and sunset at the route origin on the departure date.
// Both are nil during polar day or night.
type DaylightWindow struct {
	Sunrise *time.Time `json:"sunrise,omitempty"`
	Sunset  *time.Time `json:"sunset,omitempty"`
}

// Represents a complete, hours-of-service compliant driving plan for one route.
// It is the immutable output of schedule computation.
type Schedule struct {
	DepartAt            time.Time       `json:"depart_at"`
	ArriveAt            time.Time       `json:"arrive_at"`
	TotalDrivingSeconds int64           `json:"total_driving_seconds"`
	TotalElapsedSeconds int64           `json:"total_elapsed_seconds"`
	TotalDistanceMeters float64         `json:"total_distance_meters"`
	Events              []ScheduleEvent `json:"events"`
	SafetyScore         float64         `json:"safety_score"`
	// Excellent, Good, Fair, Poor or Hazardous.
	SafetyLevel         string          `json:"safety_level"`
	HOSCompliant        bool            `json:"hos_compliant"`
	Warnings            []string        `json:"warnings"`
	Risk                RiskSummary     `json:"risk"`
	Daylight            DaylightWindow  `json:"daylight"`
}

// Stops returns the non-drive events in order.
func (s *Schedule) Stops() []ScheduleEvent {
	out := make([]ScheduleEvent, 0)
	for _, e := range s.Events {
		if e.IsStop() {
			out = append(out, e)
		}
	}
	return out
}
