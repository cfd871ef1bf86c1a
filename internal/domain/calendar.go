package domain

// DaySchedule describes working hours for one day of the week.
// DayOfWeek follows time.Weekday numbering: 0 is Sunday.
type DaySchedule struct {
	DayOfWeek    int  `json:"day_of_week"`
	IsWorkingDay bool `json:"is_working_day"`
	StartHour    int  `json:"start_hour"`
	EndHour      int  `json:"end_hour"`
}

// WorkingCalendar is an organizational unit's weekly schedule plus its
// holiday dates (YYYY-MM-DD, stored explicitly per year, no recurrence).
// Days without an entry are treated as non-working.
type WorkingCalendar struct {
	UnitID   string        `json:"unit_id"`
	Days     []DaySchedule `json:"days"`
	Holidays []string      `json:"holidays"`
}

// ScheduleFor returns the schedule entry for a day of week, if present.
func (c *WorkingCalendar) ScheduleFor(dayOfWeek int) (DaySchedule, bool) {
	for _, day := range c.Days {
		if day.DayOfWeek == dayOfWeek {
			return day, true
		}
	}
	return DaySchedule{}, false
}

// IsHoliday reports whether the given YYYY-MM-DD date is a holiday.
func (c *WorkingCalendar) IsHoliday(date string) bool {
	for _, holiday := range c.Holidays {
		if holiday == date {
			return true
		}
	}
	return false
}
