package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
)

type fakePolicySource struct {
	hours map[string]int
	err   error
}

func (f *fakePolicySource) GetResolutionHours(ctx context.Context, unitID string, priority domain.PriorityCategory) (int, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	hours, ok := f.hours[unitID+"/"+string(priority)]
	return hours, ok, nil
}

type fakeResolver struct {
	calendar *domain.WorkingCalendar
	err      error
}

func (f *fakeResolver) Resolve(ctx context.Context, unitID string) (*domain.WorkingCalendar, error) {
	return f.calendar, f.err
}

// fullWeek builds a calendar where every day works the same window.
func fullWeek(startHour, endHour int, holidays ...string) *domain.WorkingCalendar {
	calendar := &domain.WorkingCalendar{UnitID: "unit-1", Holidays: holidays}
	for day := 0; day < 7; day++ {
		calendar.Days = append(calendar.Days, domain.DaySchedule{
			DayOfWeek:    day,
			IsWorkingDay: true,
			StartHour:    startHour,
			EndHour:      endHour,
		})
	}
	return calendar
}

func newCalculator(hours map[string]int, calendar *domain.WorkingCalendar) *Calculator {
	return NewCalculator(
		&fakePolicySource{hours: hours},
		&fakeResolver{calendar: calendar},
		zap.NewNop(),
	)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}

func TestComputeDeadlinePolicyMissing(t *testing.T) {
	calc := newCalculator(map[string]int{}, fullWeek(8, 17))

	deadline, err := calc.ComputeDeadline(context.Background(), "unit-1", domain.PriorityHigh, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deadline != nil {
		t.Fatalf("expected nil deadline for missing policy, got %v", deadline.Due)
	}
}

func TestComputeDeadlineZeroBudget(t *testing.T) {
	start := mustTime(t, "2024-03-04 10:30:00")
	calc := newCalculator(map[string]int{"unit-1/low": 0}, fullWeek(8, 17))

	deadline, err := calc.ComputeDeadline(context.Background(), "unit-1", domain.PriorityLow, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deadline == nil {
		t.Fatal("expected a deadline")
	}
	if !deadline.Due.Equal(start) {
		t.Errorf("zero budget must be due at the start instant, got %v", deadline.Due)
	}
}

// With working hours 08:00-09:00 and a one-hour budget starting 07:30, the
// only counted hour block is the one ending at 09:00: the block ending at
// 08:00 belongs to the pre-window side of the half-open boundary.
func TestComputeDeadlineBoundaryHour(t *testing.T) {
	// 2024-03-04 is a Monday.
	start := mustTime(t, "2024-03-04 07:30:00")
	calc := newCalculator(map[string]int{"unit-1/high": 1}, fullWeek(8, 9))

	deadline, err := calc.ComputeDeadline(context.Background(), "unit-1", domain.PriorityHigh, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deadline == nil {
		t.Fatal("expected a deadline")
	}
	want := mustTime(t, "2024-03-04 09:00:00")
	if !deadline.Due.Equal(want) {
		t.Errorf("deadline = %v, expected %v", deadline.Due, want)
	}
	if deadline.TargetDate != "2024-03-04" || deadline.TargetTime != "09:00:00" {
		t.Errorf("split components = %s %s, expected 2024-03-04 09:00:00", deadline.TargetDate, deadline.TargetTime)
	}
}

// A start date marked as a holiday contributes zero working hours even
// though the weekly schedule is open; the deadline lands on the first
// working hour after the holiday.
func TestComputeDeadlineHolidaySkip(t *testing.T) {
	start := mustTime(t, "2024-03-04 08:00:00")
	calendar := fullWeek(8, 17, "2024-03-04")
	calc := newCalculator(map[string]int{"unit-1/medium": 1}, calendar)

	deadline, err := calc.ComputeDeadline(context.Background(), "unit-1", domain.PriorityMedium, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deadline == nil {
		t.Fatal("expected a deadline")
	}
	want := mustTime(t, "2024-03-05 09:00:00")
	if !deadline.Due.Equal(want) {
		t.Errorf("deadline = %v, expected %v (first working hour after the holiday)", deadline.Due, want)
	}
}

// Non-working days are skipped entirely: a budget started Friday afternoon
// spills over the weekend into Monday.
func TestComputeDeadlineWeekendSkip(t *testing.T) {
	// 2024-03-08 is a Friday.
	start := mustTime(t, "2024-03-08 15:00:00")
	calendar := &domain.WorkingCalendar{UnitID: "unit-1"}
	for day := 1; day <= 5; day++ { // Monday..Friday
		calendar.Days = append(calendar.Days, domain.DaySchedule{
			DayOfWeek:    day,
			IsWorkingDay: true,
			StartHour:    8,
			EndHour:      17,
		})
	}
	calc := newCalculator(map[string]int{"unit-1/high": 4}, calendar)

	deadline, err := calc.ComputeDeadline(context.Background(), "unit-1", domain.PriorityHigh, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deadline == nil {
		t.Fatal("expected a deadline")
	}
	// Two hours remain on Friday (16:00, 17:00); the other two land on
	// Monday at 09:00 and 10:00.
	want := mustTime(t, "2024-03-11 10:00:00")
	if !deadline.Due.Equal(want) {
		t.Errorf("deadline = %v, expected %v", deadline.Due, want)
	}
}

// A calendar with no working days can never satisfy the budget; the
// simulation bound trips and no deadline is reported.
func TestComputeDeadlineExhaustion(t *testing.T) {
	calendar := &domain.WorkingCalendar{UnitID: "unit-1"}
	calc := newCalculator(map[string]int{"unit-1/major": 2}, calendar)

	deadline, err := calc.ComputeDeadline(context.Background(), "unit-1", domain.PriorityMajor, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deadline != nil {
		t.Errorf("expected nil deadline for an unsatisfiable calendar, got %v", deadline.Due)
	}
}

func TestComputeDeadlinePolicyStorageFailure(t *testing.T) {
	calc := NewCalculator(
		&fakePolicySource{err: errors.New("connection refused")},
		&fakeResolver{calendar: fullWeek(8, 17)},
		zap.NewNop(),
	)

	if _, err := calc.ComputeDeadline(context.Background(), "unit-1", domain.PriorityLow, time.Now()); err == nil {
		t.Fatal("expected storage error to propagate")
	}
}
