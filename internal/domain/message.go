package domain

// MessageParties - отправитель и получатель сохранённого сообщения.
type MessageParties struct {
	MessageID  string
	SenderID   string
	ReceiverID string
}
