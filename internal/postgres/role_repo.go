package postgres

import (
	"context"
	"fmt"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/permission"
)

// RoleRepository читает матрицу прав один раз при старте.
type RoleRepository struct {
	q querier
}

func NewRoleRepository(q querier) *RoleRepository {
	return &RoleRepository{q: q}
}

func (r *RoleRepository) LoadRules(ctx context.Context) (permission.Rules, error) {
	rows, err := r.q.Query(ctx, queryRolePermissions)
	if err != nil {
		return nil, fmt.Errorf("query role permissions: %w", err)
	}
	defer rows.Close()

	rules := permission.Rules{}
	for rows.Next() {
		var sender, receiver string
		if err := rows.Scan(&sender, &receiver); err != nil {
			return nil, fmt.Errorf("scan role permission: %w", err)
		}
		s := domain.ParseRole(sender)
		rules[s] = append(rules[s], domain.ParseRole(receiver))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read role permissions: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("role_permissions is empty")
	}

	return rules, nil
}
