package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siladan/servicedesk/internal/domain"
)

// CalendarRepository reads and configures working calendars per unit.
type CalendarRepository interface {
	GetCalendar(ctx context.Context, unitID string) (*domain.WorkingCalendar, error)
	UpsertWorkingDay(ctx context.Context, unitID string, day domain.DaySchedule) error
	AddHoliday(ctx context.Context, unitID, date, name string) error
}

type calendarRepository struct {
	pool *pgxpool.Pool
}

// NewCalendarRepository instantiates repository.
func NewCalendarRepository(pool *pgxpool.Pool) CalendarRepository {
	return &calendarRepository{pool: pool}
}

// GetCalendar resolves the weekly schedule and holiday set for a unit.
// Missing schedule rows are simply absent; callers treat absent days as
// non-working.
func (r *calendarRepository) GetCalendar(ctx context.Context, unitID string) (*domain.WorkingCalendar, error) {
	const scheduleQuery = `
        SELECT day_of_week, is_working_day, start_hour, end_hour
        FROM unit_working_hours WHERE unit_id=$1 ORDER BY day_of_week`
	rows, err := r.pool.Query(ctx, scheduleQuery, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calendar := &domain.WorkingCalendar{UnitID: unitID}
	for rows.Next() {
		var day domain.DaySchedule
		if err := rows.Scan(&day.DayOfWeek, &day.IsWorkingDay, &day.StartHour, &day.EndHour); err != nil {
			return nil, err
		}
		calendar.Days = append(calendar.Days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const holidayQuery = `
        SELECT to_char(holiday_date, 'YYYY-MM-DD') FROM unit_holidays WHERE unit_id=$1`
	holidayRows, err := r.pool.Query(ctx, holidayQuery, unitID)
	if err != nil {
		return nil, err
	}
	defer holidayRows.Close()

	for holidayRows.Next() {
		var date string
		if err := holidayRows.Scan(&date); err != nil {
			return nil, err
		}
		calendar.Holidays = append(calendar.Holidays, date)
	}
	return calendar, holidayRows.Err()
}

func (r *calendarRepository) UpsertWorkingDay(ctx context.Context, unitID string, day domain.DaySchedule) error {
	const query = `
        INSERT INTO unit_working_hours (unit_id, day_of_week, is_working_day, start_hour, end_hour)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (unit_id, day_of_week)
        DO UPDATE SET is_working_day=$3, start_hour=$4, end_hour=$5`
	_, err := r.pool.Exec(ctx, query, unitID, day.DayOfWeek, day.IsWorkingDay, day.StartHour, day.EndHour)
	return err
}

func (r *calendarRepository) AddHoliday(ctx context.Context, unitID, date, name string) error {
	const query = `
        INSERT INTO unit_holidays (unit_id, holiday_date, holiday_name)
        VALUES ($1,$2,$3)
        ON CONFLICT (unit_id, holiday_date) DO UPDATE SET holiday_name=$3`
	_, err := r.pool.Exec(ctx, query, unitID, date, name)
	return err
}
