package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siladan/servicedesk/internal/domain"
)

// RoleRepository reads the role-permission configuration table.
type RoleRepository interface {
	ListRoles(ctx context.Context) ([]domain.RoleConfig, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository instantiates repository.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) ListRoles(ctx context.Context) ([]domain.RoleConfig, error) {
	const query = `SELECT role_key, permissions, description FROM roles_config`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.RoleConfig
	for rows.Next() {
		var role domain.RoleConfig
		if err := rows.Scan(&role.RoleKey, &role.Permissions, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
