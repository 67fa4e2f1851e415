package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	q querier
}

func NewUserRepository(q querier) *UserRepository {
	return &UserRepository{q: q}
}

// RoleOf - роль пользователя, который сейчас не подключён.
func (r *UserRepository) RoleOf(ctx context.Context, userID string) (domain.Role, error) {
	var role string
	err := r.q.QueryRow(ctx, queryUserRole, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return "", err
	}

	return domain.ParseRole(role), nil
}
