package domain

import "time"

// Running totals the hours-of-service rules are evaluated against.
// This is the only mutable entity while a schedule is assembled; it is
// coherent between any two processed segments or stops.
type DriverState struct {
	// Driving since the last 30-minute break (or 10-hour rest).
	DrivingSinceBreak time.Duration
	// On-duty time since the current duty window opened.
	OnDuty time.Duration
	// Driving since the last 10-hour rest.
	DrivingSinceRest time.Duration
	// Current wall-clock time.
	Clock time.Time
}
