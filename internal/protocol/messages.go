// Package protocol defines the JSON frames exchanged over the realtime
// channel. Every frame carries a "type" discriminator.
package protocol

import "encoding/json"

// Типы кадров
const (
	TypeAuthSuccess      = "auth_success"
	TypeNewMessage       = "new_message"
	TypeNotification     = "notification"
	TypeTypingStart      = "typing_start"
	TypeTypingStop       = "typing_stop"
	TypeMessageDelivered = "message_delivered"
	TypeMessageRead      = "message_read"
	TypeUserOnline       = "user_online"
	TypeUserOffline      = "user_offline"
	TypeError            = "error"
)

// Тексты error-кадров
const (
	ErrTextInvalidFrame     = "Invalid message format"
	ErrTextUnknownType      = "Unknown message type"
	ErrTextPermissionDenied = "Permission denied"
	ErrTextUnknownRecipient = "Recipient not found"
	ErrTextMessageNotFound  = "Message not found"
	ErrTextInternal         = "Internal error"

	ErrTextReceiptsUnavailable = "Receipts unavailable"
)

// --- inbound ---

// Inbound is one of TypingStart, TypingStop, MessageDelivered, MessageRead.
type Inbound interface {
	FrameType() string
}

type TypingStart struct {
	ReceiverID string `json:"receiverId"`
}

type TypingStop struct {
	ReceiverID string `json:"receiverId"`
}

type MessageDelivered struct {
	MessageID string `json:"messageId"`
}

type MessageRead struct {
	MessageID string `json:"messageId"`
}

func (TypingStart) FrameType() string      { return TypeTypingStart }
func (TypingStop) FrameType() string       { return TypeTypingStop }
func (MessageDelivered) FrameType() string { return TypeMessageDelivered }
func (MessageRead) FrameType() string      { return TypeMessageRead }

// --- outbound ---

// Frame is an outbound frame ready to be marshalled.
type Frame struct {
	Type        string          `json:"type"`
	UserID      string          `json:"userId,omitempty"`
	MessageID   string          `json:"messageId,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	UnreadCount *int            `json:"unreadCount,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func AuthSuccess() Frame {
	return Frame{Type: TypeAuthSuccess}
}

func NewMessage(message json.RawMessage, unread *int) Frame {
	return Frame{Type: TypeNewMessage, Message: nonEmpty(message), UnreadCount: unread}
}

func Notification(data json.RawMessage, unread *int) Frame {
	return Frame{Type: TypeNotification, Data: nonEmpty(data), UnreadCount: unread}
}

func TypingStarted(senderID string) Frame {
	return Frame{Type: TypeTypingStart, UserID: senderID}
}

func TypingStopped(senderID string) Frame {
	return Frame{Type: TypeTypingStop, UserID: senderID}
}

// Receipt builds message_delivered / message_read sent back to the author.
func Receipt(frameType, messageID, readerID string) Frame {
	return Frame{Type: frameType, MessageID: messageID, UserID: readerID}
}

func UserOnline(userID string) Frame {
	return Frame{Type: TypeUserOnline, UserID: userID}
}

func UserOffline(userID string) Frame {
	return Frame{Type: TypeUserOffline, UserID: userID}
}

func Error(text string) Frame {
	return Frame{Type: TypeError, Error: text}
}

func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// пустой payload всё равно должен попасть в кадр как null
func nonEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
