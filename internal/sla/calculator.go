package sla

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
)

// maxSimulatedHours bounds the deadline simulation at 30 days of
// wall-clock time, so a misconfigured calendar (e.g. a unit with no
// working days) cannot spin forever.
const maxSimulatedHours = 720

// PolicySource looks up the resolution budget for a (unit, priority) pair.
// A missing policy is reported via the bool, not an error.
type PolicySource interface {
	GetResolutionHours(ctx context.Context, unitID string, priority domain.PriorityCategory) (int, bool, error)
}

// Calculator computes business-hours SLA deadlines. It holds no mutable
// state; callers persist the result.
type Calculator struct {
	policies  PolicySource
	calendars Resolver
	logger    *zap.Logger
}

// NewCalculator constructs the calculator.
func NewCalculator(policies PolicySource, calendars Resolver, logger *zap.Logger) *Calculator {
	return &Calculator{policies: policies, calendars: calendars, logger: logger}
}

// ComputeDeadline returns the instant by which a ticket must be resolved,
// counting only hours inside the unit's working windows. A nil Deadline
// with nil error means the SLA is not configured (or the calendar cannot
// satisfy the budget within the simulation bound); callers leave the
// ticket's deadline fields null. Storage failures are returned as errors.
func (c *Calculator) ComputeDeadline(ctx context.Context, unitID string, priority domain.PriorityCategory, start time.Time) (*domain.Deadline, error) {
	hours, ok, err := c.policies.GetResolutionHours(ctx, unitID, priority)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Warn("sla policy missing",
			zap.String("unit_id", unitID),
			zap.String("priority", string(priority)))
		return nil, nil
	}

	if hours <= 0 {
		// Zero budget: due immediately at the start instant.
		return deadlineAt(start), nil
	}

	calendar, err := c.calendars.Resolve(ctx, unitID)
	if err != nil {
		return nil, err
	}

	due, ok := simulate(calendar, hours, start)
	if !ok {
		c.logger.Warn("sla simulation exhausted before budget was spent",
			zap.String("unit_id", unitID),
			zap.String("priority", string(priority)),
			zap.Int("resolution_hours", hours))
		return nil, nil
	}
	return deadlineAt(due), nil
}

// simulate advances hour by hour from the start instant, spending one hour
// of budget for every whole-hour block that ends inside a working window.
// The cursor is aligned down to the hour so that an hour block ending at
// end_hour is the last counted one and the block ending at start_hour is
// not counted (half-open on the left, closed on the right). The bool is
// false when the 720-iteration bound was hit with budget remaining.
func simulate(calendar *domain.WorkingCalendar, hours int, start time.Time) (time.Time, bool) {
	remaining := hours
	cursor := start.Truncate(time.Hour)

	for counter := 0; remaining > 0 && counter < maxSimulatedHours; counter++ {
		cursor = cursor.Add(time.Hour)

		if calendar.IsHoliday(cursor.Format("2006-01-02")) {
			continue
		}
		schedule, ok := calendar.ScheduleFor(int(cursor.Weekday()))
		if !ok || !schedule.IsWorkingDay {
			continue
		}
		hour := cursor.Hour()
		if hour > schedule.StartHour && hour <= schedule.EndHour {
			remaining--
		}
	}

	return cursor, remaining == 0
}

func deadlineAt(due time.Time) *domain.Deadline {
	return &domain.Deadline{
		Due:        due,
		TargetDate: due.Format("2006-01-02"),
		TargetTime: due.Format("15:04:05"),
	}
}
