package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/identity-service/internal/domain"
)

// RoleRepository reads the fixed role catalog. Roles are seeded by
// migrations and never written by the service.
type RoleRepository interface {
	GetByNames(ctx context.Context, names []domain.RoleName) ([]domain.Role, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) GetByNames(ctx context.Context, names []domain.RoleName) ([]domain.Role, error) {
	const query = `SELECT id, name FROM roles WHERE name = ANY($1) ORDER BY id`

	values := make([]string, 0, len(names))
	for _, name := range names {
		values = append(values, string(name))
	}

	rows, err := r.pool.Query(ctx, query, values)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make([]domain.Role, 0, len(names))
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
