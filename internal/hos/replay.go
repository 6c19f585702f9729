package hos

import (
	"driver-schedule-service/internal/domain"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrViolation = errors.New("hours-of-service violation")

// Replay walks an emitted schedule through a fresh engine and reports the
// first event that breaks a limit, a fixed stop length, or time ordering.
func Replay(sched *domain.Schedule) error {
	if sched == nil {
		return errors.New("replay: schedule is nil")
	}

	e := NewEngine()
	s := domain.DriverState{Clock: sched.DepartAt}

	for i, ev := range sched.Events {
		if !ev.Start.Equal(s.Clock) {
			return fmt.Errorf("replay: event %d starts at %v, want %v: %w", i, ev.Start, s.Clock, ErrViolation)
		}
		if ev.End.Before(ev.Start) {
			return fmt.Errorf("replay: event %d ends before it starts: %w", i, ErrViolation)
		}

		switch ev.Kind {
		case domain.EventDrive:
			dec, err := e.Advance(&s, ev.Duration())
			if err != nil {
				return fmt.Errorf("replay: event %d: %w", i, err)
			}
			if dec.Kind != ContinueDriving {
				return fmt.Errorf("replay: event %d drives past a limit (%s at %v): %w", i, dec.Kind, dec.AtOffset, ErrViolation)
			}
		case domain.EventBreak:
			if err := checkLength(i, ev, BreakDuration); err != nil {
				return err
			}
			if s.OnDuty+BreakDuration > MaxOnDutyWindow {
				return fmt.Errorf("replay: event %d break runs past the duty window: %w", i, ErrViolation)
			}
			e.TakeBreak(&s)
		case domain.EventRest:
			if err := checkLength(i, ev, RestDuration); err != nil {
				return err
			}
			e.TakeRest(&s)
		case domain.EventSafetyWait:
			if err := checkLength(i, ev, ev.Duration()); err != nil {
				return err
			}
			if err := e.Wait(&s, ev.Duration()); err != nil {
				return fmt.Errorf("replay: event %d: %v: %w", i, err, ErrViolation)
			}
		default:
			return fmt.Errorf("replay: event %d has unknown kind %q: %w", i, ev.Kind, ErrViolation)
		}
	}

	if !s.Clock.Equal(sched.ArriveAt) {
		return fmt.Errorf("replay: events end at %v, arrival is %v: %w", s.Clock, sched.ArriveAt, ErrViolation)
	}
	if got := int64(sched.ArriveAt.Sub(sched.DepartAt) / time.Second); got != sched.TotalElapsedSeconds {
		return fmt.Errorf("replay: elapsed %ds, schedule says %ds: %w", got, sched.TotalElapsedSeconds, ErrViolation)
	}

	return nil
}

func checkLength(i int, ev domain.ScheduleEvent, want time.Duration) error {
	if ev.Duration() != want {
		return fmt.Errorf("replay: event %d %s lasts %v, want %v: %w", i, ev.Kind, ev.Duration(), want, ErrViolation)
	}
	if math.Abs(ev.DurationMinutes-want.Minutes()) > 1e-9 {
		return fmt.Errorf("replay: event %d %s reports %v minutes, want %v: %w", i, ev.Kind, ev.DurationMinutes, want.Minutes(), ErrViolation)
	}
	return nil
}
