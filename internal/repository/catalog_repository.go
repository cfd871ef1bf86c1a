package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siladan/servicedesk/internal/domain"
)

// CatalogRepository reads service catalog items.
type CatalogRepository interface {
	GetByID(ctx context.Context, id string) (*domain.CatalogItem, error)
	List(ctx context.Context) ([]domain.CatalogItem, error)
}

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository instantiates repository.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{pool: pool}
}

const catalogColumns = `id, item_code, item_name, description, unit_id, approval_required, approval_levels, created_at`

func (r *catalogRepository) GetByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_items WHERE id=$1`
	var item domain.CatalogItem
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.ItemCode,
		&item.ItemName,
		&item.Description,
		&item.UnitID,
		&item.ApprovalRequired,
		&item.ApprovalLevels,
		&item.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *catalogRepository) List(ctx context.Context) ([]domain.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_items ORDER BY item_code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var item domain.CatalogItem
		if err := rows.Scan(
			&item.ID,
			&item.ItemCode,
			&item.ItemName,
			&item.Description,
			&item.UnitID,
			&item.ApprovalRequired,
			&item.ApprovalLevels,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
