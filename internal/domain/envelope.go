package domain

import "encoding/json"

type Kind string

const (
	KindChatMessage  Kind = "chat_message"
	KindNotification Kind = "notification"
)

// Envelope создаётся слоем хранения при появлении сообщения или уведомления
// и потребляется диспетчером один раз.
type Envelope struct {
	TargetUserID string          `json:"targetUserId" validate:"required"`
	Kind         Kind            `json:"kind" validate:"required"`
	Payload      json.RawMessage `json:"payload"`
	UnreadCount  *int            `json:"unreadCount,omitempty" validate:"omitempty,min=0"`
}

func (e Envelope) IsChat() bool {
	return e.Kind == KindChatMessage
}
