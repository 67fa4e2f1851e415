package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/jackc/pgx/v5"
)

// MessageRepository только читает: сообщения пишет чат-сервис.
type MessageRepository struct {
	q querier
}

func NewMessageRepository(q querier) *MessageRepository {
	return &MessageRepository{q: q}
}

func (r *MessageRepository) MessageParties(ctx context.Context, messageID string) (domain.MessageParties, error) {
	var p domain.MessageParties
	err := r.q.QueryRow(ctx, queryMessageParties, messageID).Scan(&p.MessageID, &p.SenderID, &p.ReceiverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MessageParties{}, fmt.Errorf("%w: %s", domain.ErrMessageNotFound, messageID)
		}
		return domain.MessageParties{}, err
	}

	return p, nil
}
