package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siladan/servicedesk/internal/domain"
)

// SLAPolicyRepository stores resolution budgets per (unit, priority).
type SLAPolicyRepository interface {
	GetResolutionHours(ctx context.Context, unitID string, priority domain.PriorityCategory) (int, bool, error)
	Upsert(ctx context.Context, policy *domain.SLAPolicy) error
	ListByUnit(ctx context.Context, unitID string) ([]domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository instantiates repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

// GetResolutionHours returns the configured budget. A missing policy is an
// expected condition, reported via the bool rather than an error.
func (r *slaPolicyRepository) GetResolutionHours(ctx context.Context, unitID string, priority domain.PriorityCategory) (int, bool, error) {
	const query = `
        SELECT resolution_hours FROM sla_policies WHERE unit_id=$1 AND priority=$2`
	var hours int
	if err := r.pool.QueryRow(ctx, query, unitID, priority).Scan(&hours); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return hours, true, nil
}

func (r *slaPolicyRepository) Upsert(ctx context.Context, policy *domain.SLAPolicy) error {
	const query = `
        INSERT INTO sla_policies (unit_id, priority, resolution_hours, description)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (unit_id, priority)
        DO UPDATE SET resolution_hours=$3, description=$4, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		policy.UnitID,
		policy.Priority,
		policy.ResolutionHours,
		policy.Description,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
}

func (r *slaPolicyRepository) ListByUnit(ctx context.Context, unitID string) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT id, unit_id, priority, resolution_hours, description, created_at, updated_at
        FROM sla_policies WHERE unit_id=$1 ORDER BY priority`
	rows, err := r.pool.Query(ctx, query, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.SLAPolicy
	for rows.Next() {
		var p domain.SLAPolicy
		if err := rows.Scan(&p.ID, &p.UnitID, &p.Priority, &p.ResolutionHours, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
