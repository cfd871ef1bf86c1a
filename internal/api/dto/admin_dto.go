package dto

import (
	"time"

	"github.com/siladan/servicedesk/internal/domain"
)

// WorkingDayRequest configures one weekday of a unit's calendar.
type WorkingDayRequest struct {
	DayOfWeek    int  `json:"day_of_week"`
	IsWorkingDay bool `json:"is_working_day"`
	StartHour    int  `json:"start_hour"`
	EndHour      int  `json:"end_hour"`
}

// HolidayRequest adds one holiday date (YYYY-MM-DD) to a unit.
type HolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// SLAPolicyRequest sets the resolution budget for a priority.
type SLAPolicyRequest struct {
	Priority        domain.PriorityCategory `json:"priority"`
	ResolutionHours int                     `json:"resolution_hours"`
	Description     string                  `json:"description"`
}

// SLAPolicyResponse is one configured budget row.
type SLAPolicyResponse struct {
	ID              string                  `json:"id"`
	UnitID          string                  `json:"unit_id"`
	Priority        domain.PriorityCategory `json:"priority"`
	ResolutionHours int                     `json:"resolution_hours"`
	Description     string                  `json:"description"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// CalendarResponse is a unit's full working calendar.
type CalendarResponse struct {
	UnitID   string               `json:"unit_id"`
	Days     []domain.DaySchedule `json:"days"`
	Holidays []string             `json:"holidays"`
}
