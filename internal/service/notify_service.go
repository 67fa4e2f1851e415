package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/metrics"
	"github.com/cwrk-planet/realtime-service/internal/protocol"

	"github.com/go-playground/validator/v10"
)

// Sender delivers a frame to a user's open connection, best-effort.
type Sender interface {
	Send(userID string, f protocol.Frame) bool
}

// NotifyService turns envelopes from the persistence layer into frames.
// Envelopes are not deduplicated and a miss is not retried.
type NotifyService struct {
	sender   Sender
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func NewNotifyService(sender Sender, m *metrics.Metrics) *NotifyService {
	return &NotifyService{
		sender:   sender,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  m,
	}
}

// Notify sends new_message for chat envelopes and notification otherwise.
// delivered is false when the target has no open connection.
func (s *NotifyService) Notify(ctx context.Context, env domain.Envelope) (bool, error) {
	if err := s.validate.StructCtx(ctx, env); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidEnvelope, err)
	}

	var f protocol.Frame
	if env.IsChat() {
		f = protocol.NewMessage(env.Payload, env.UnreadCount)
	} else {
		f = protocol.Notification(env.Payload, env.UnreadCount)
	}

	delivered := s.sender.Send(env.TargetUserID, f)
	s.metrics.Notification(string(env.Kind), delivered)
	slog.Debug("notify",
		"target", env.TargetUserID,
		"kind", string(env.Kind),
		"delivered", delivered)

	return delivered, nil
}
