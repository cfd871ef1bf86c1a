package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siladan/servicedesk/internal/domain"
)

// ActivityLogRepository appends and reads the immutable ticket audit trail.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ActivityLog, error)
}

type activityLogRepository struct {
	pool *pgxpool.Pool
}

// NewActivityLogRepository instantiates repository.
func NewActivityLogRepository(pool *pgxpool.Pool) ActivityLogRepository {
	return &activityLogRepository{pool: pool}
}

func (r *activityLogRepository) Append(ctx context.Context, entry *domain.ActivityLog) error {
	const query = `
        INSERT INTO ticket_logs (ticket_id, user_id, action, description, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.Description,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *activityLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ActivityLog, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, description, old_value, new_value, created_at
        FROM ticket_logs WHERE ticket_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ActivityLog
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.Action,
			&entry.Description,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
