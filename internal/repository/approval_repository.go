package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siladan/servicedesk/internal/domain"
)

// ApprovalRepository stores ordered approval workflow steps.
type ApprovalRepository interface {
	CreateSteps(ctx context.Context, steps []domain.ApprovalStep) error
	GetPendingByRole(ctx context.Context, ticketID, approverRole string) (*domain.ApprovalStep, error)
	Respond(ctx context.Context, stepID, approverID string, status domain.ApprovalStatus, notes string) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalStep, error)
}

type approvalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository instantiates repository.
func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &approvalRepository{pool: pool}
}

func (r *approvalRepository) CreateSteps(ctx context.Context, steps []domain.ApprovalStep) error {
	const query = `
        INSERT INTO approval_workflows (ticket_id, workflow_level, approver_role, status)
        VALUES ($1,$2,$3,$4)`
	for i := range steps {
		if _, err := r.pool.Exec(ctx, query,
			steps[i].TicketID,
			steps[i].Level,
			steps[i].ApproverRole,
			domain.ApprovalPending,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetPendingByRole finds the caller's unanswered step, if any.
func (r *approvalRepository) GetPendingByRole(ctx context.Context, ticketID, approverRole string) (*domain.ApprovalStep, error) {
	const query = `
        SELECT id, ticket_id, workflow_level, approver_role, approver_id, status, notes, responded_at, created_at
        FROM approval_workflows
        WHERE ticket_id=$1 AND approver_role=$2 AND status='pending'
        ORDER BY workflow_level LIMIT 1`
	var step domain.ApprovalStep
	if err := r.pool.QueryRow(ctx, query, ticketID, approverRole).Scan(
		&step.ID,
		&step.TicketID,
		&step.Level,
		&step.ApproverRole,
		&step.ApproverID,
		&step.Status,
		&step.Notes,
		&step.RespondedAt,
		&step.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	return &step, nil
}

func (r *approvalRepository) Respond(ctx context.Context, stepID, approverID string, status domain.ApprovalStatus, notes string) error {
	const query = `
        UPDATE approval_workflows
        SET approver_id=$1, status=$2, notes=$3, responded_at=$4
        WHERE id=$5 AND status='pending'`
	cmd, err := r.pool.Exec(ctx, query, approverID, status, notes, time.Now(), stepID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *approvalRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalStep, error) {
	const query = `
        SELECT id, ticket_id, workflow_level, approver_role, approver_id, status, notes, responded_at, created_at
        FROM approval_workflows WHERE ticket_id=$1 ORDER BY workflow_level`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.ApprovalStep
	for rows.Next() {
		var step domain.ApprovalStep
		if err := rows.Scan(
			&step.ID,
			&step.TicketID,
			&step.Level,
			&step.ApproverRole,
			&step.ApproverID,
			&step.Status,
			&step.Notes,
			&step.RespondedAt,
			&step.CreatedAt,
		); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
