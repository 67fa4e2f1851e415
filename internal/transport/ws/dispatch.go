package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/typing"
)

// Dispatch handles one inbound frame from c. Every failure is answered with
// an error frame to the sender only and the connection stays open; the
// returned error is for logging.
func (h *Hub) Dispatch(ctx context.Context, c *Client, data []byte) error {
	in, err := protocol.Parse(data)
	if err != nil {
		var pe *protocol.ParseError
		text := protocol.ErrTextInvalidFrame
		if errors.As(err, &pe) {
			text = pe.Text
		}
		h.sendTo(c, protocol.Error(text))
		return err
	}
	h.metrics.FrameReceived(in.FrameType())

	switch f := in.(type) {
	case protocol.TypingStart:
		err = h.handleTyping(ctx, c, f.ReceiverID, true)
	case protocol.TypingStop:
		err = h.handleTyping(ctx, c, f.ReceiverID, false)
	case protocol.MessageDelivered:
		err = h.handleReceipt(ctx, c, protocol.TypeMessageDelivered, f.MessageID)
	case protocol.MessageRead:
		err = h.handleReceipt(ctx, c, protocol.TypeMessageRead, f.MessageID)
	default:
		err = fmt.Errorf("%w: unhandled frame %s", domain.ErrProtocol, in.FrameType())
	}
	if err != nil {
		h.sendTo(c, protocol.Error(errorText(err)))
	}

	return err
}

// errRoleUnknown: получатель не подключён, а реестра ролей нет.
var errRoleUnknown = errors.New("receiver role unknown")

func (h *Hub) handleTyping(ctx context.Context, c *Client, receiverID string, start bool) error {
	forward := true
	switch err := h.authorize(ctx, c, receiverID); {
	case errors.Is(err, errRoleUnknown):
		// получатель офлайн: состояние меняется, пересылать некому
		forward = false
	case err != nil:
		return err
	}

	p := typing.Pair{SenderID: c.UserID, ReceiverID: receiverID}
	if start {
		h.typing.Start(p)
	} else {
		h.typing.Stop(p)
	}
	if forward {
		if start {
			h.Send(receiverID, protocol.TypingStarted(c.UserID))
		} else {
			h.Send(receiverID, protocol.TypingStopped(c.UserID))
		}
	}
	h.metrics.SetTyping(h.typing.Len())

	return nil
}

// handleReceipt forwards a delivery or read receipt to the message author.
// Only the message recipient may acknowledge it.
func (h *Hub) handleReceipt(ctx context.Context, c *Client, frameType, messageID string) error {
	if h.messages == nil {
		return fmt.Errorf("%w: %s", domain.ErrReceiptsUnavailable, messageID)
	}
	parties, err := h.messages.MessageParties(ctx, messageID)
	if err != nil {
		return fmt.Errorf("lookup message %s: %w", messageID, err)
	}
	if parties.ReceiverID != c.UserID {
		h.metrics.PermissionDenied()
		return fmt.Errorf("%w: %s is not the recipient of %s", domain.ErrPermissionDenied, c.UserID, messageID)
	}

	h.Send(parties.SenderID, protocol.Receipt(frameType, messageID, c.UserID))
	return nil
}

// authorize checks the gate for c addressing receiverID. The receiver's role
// comes from its open connection, otherwise from the role resolver. Without
// a resolver an offline receiver yields errRoleUnknown.
func (h *Hub) authorize(ctx context.Context, c *Client, receiverID string) error {
	role, err := h.roleOf(ctx, receiverID)
	if err != nil {
		return err
	}
	if !h.gate.CanMessage(c.Role, role) {
		h.metrics.PermissionDenied()
		return fmt.Errorf("%w: %s -> %s", domain.ErrPermissionDenied, c.Role, role)
	}

	return nil
}

func (h *Hub) roleOf(ctx context.Context, userID string) (domain.Role, error) {
	if rc, ok := h.Lookup(userID); ok {
		return rc.Role, nil
	}
	if h.roles == nil {
		return "", fmt.Errorf("%w: %s", errRoleUnknown, userID)
	}
	role, err := h.roles.RoleOf(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve role of %s: %w", userID, err)
	}

	return role, nil
}

func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return protocol.ErrTextPermissionDenied
	case errors.Is(err, domain.ErrUserNotFound):
		return protocol.ErrTextUnknownRecipient
	case errors.Is(err, domain.ErrMessageNotFound):
		return protocol.ErrTextMessageNotFound
	case errors.Is(err, domain.ErrReceiptsUnavailable):
		return protocol.ErrTextReceiptsUnavailable
	case errors.Is(err, domain.ErrProtocol):
		return protocol.ErrTextInvalidFrame
	default:
		slog.Warn("ws dispatch failed", "err", err)
		return protocol.ErrTextInternal
	}
}
