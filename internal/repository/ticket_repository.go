package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siladan/servicedesk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	ReporterID *string
	AssignedTo *string
	UnitID     *string
	Type       *domain.TicketType
	Statuses   []domain.TicketStatus
	Priorities []domain.PriorityCategory
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListBreachCandidates(ctx context.Context, now time.Time) ([]domain.Ticket, error)
	MarkBreached(ctx context.Context, ids []string) ([]string, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, type, source, title, description, status, stage,
       priority, priority_score, urgency, impact, unit_id, reporter_id, assigned_to,
       catalog_item_id, merged_into, sla_start_basis, sla_due, sla_target_date,
       sla_target_time, sla_breached, created_at, updated_at, resolved_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, type, source, title, description, status, stage,
            priority, priority_score, urgency, impact, unit_id, reporter_id, assigned_to,
            catalog_item_id, sla_start_basis, sla_due, sla_target_date, sla_target_time, sla_breached)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Type,
		ticket.Source,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Stage,
		ticket.Priority,
		ticket.PriorityScore,
		ticket.Urgency,
		ticket.Impact,
		ticket.UnitID,
		ticket.ReporterID,
		ticket.AssignedTo,
		ticket.CatalogItemID,
		ticket.SLAStartBasis,
		ticket.SLADue,
		ticket.SLATargetDate,
		ticket.SLATargetTime,
		ticket.SLABreached,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, stage=$2, priority=$3, priority_score=$4, urgency=$5,
            impact=$6, assigned_to=$7, merged_into=$8, sla_start_basis=$9, sla_due=$10,
            sla_target_date=$11, sla_target_time=$12, resolved_at=$13, closed_at=$14,
            updated_at=NOW()
        WHERE id=$15`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		ticket.Stage,
		ticket.Priority,
		ticket.PriorityScore,
		ticket.Urgency,
		ticket.Impact,
		ticket.AssignedTo,
		ticket.MergedInto,
		ticket.SLAStartBasis,
		ticket.SLADue,
		ticket.SLATargetDate,
		ticket.SLATargetTime,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicketRow(row)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.UnitID != nil {
		args = append(args, *filter.UnitID)
		clauses = append(clauses, fmt.Sprintf("unit_id=$%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListBreachCandidates returns open tickets whose deadline has passed and
// that are not yet flagged.
func (r *ticketRepository) ListBreachCandidates(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE sla_due < $1
          AND sla_breached = false
          AND status NOT IN ('resolved','closed','rejected')`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// MarkBreached flags the given tickets, re-checking the breach filter at
// write time so a ticket resolved between scan and write is skipped. Only
// the IDs actually flagged are returned.
func (r *ticketRepository) MarkBreached(ctx context.Context, ids []string) ([]string, error) {
	const query = `
        UPDATE tickets SET sla_breached = true, updated_at = NOW()
        WHERE id = ANY($1)
          AND sla_breached = false
          AND status NOT IN ('resolved','closed','rejected')
        RETURNING id`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flagged []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		flagged = append(flagged, id)
	}
	return flagged, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Type,
		&ticket.Source,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Stage,
		&ticket.Priority,
		&ticket.PriorityScore,
		&ticket.Urgency,
		&ticket.Impact,
		&ticket.UnitID,
		&ticket.ReporterID,
		&ticket.AssignedTo,
		&ticket.CatalogItemID,
		&ticket.MergedInto,
		&ticket.SLAStartBasis,
		&ticket.SLADue,
		&ticket.SLATargetDate,
		&ticket.SLATargetTime,
		&ticket.SLABreached,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
