package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/tidwall/gjson"
)

// ParseError is returned for frames that cannot be dispatched. Text is what
// the sender sees in the error frame.
type ParseError struct {
	Text  string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Text, e.Cause)
	}
	return e.Text
}

func (e *ParseError) Unwrap() error { return domain.ErrProtocol }

// Parse classifies a raw frame by its "type" and decodes the fields that
// type requires. Outbound-only types are rejected as unknown.
func Parse(data []byte) (Inbound, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Text: ErrTextInvalidFrame}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &ParseError{Text: ErrTextInvalidFrame}
	}
	t := root.Get("type")
	if t.Type != gjson.String {
		return nil, &ParseError{Text: ErrTextInvalidFrame, Cause: fmt.Errorf("missing type")}
	}

	switch t.Str {
	case TypeTypingStart:
		var f TypingStart
		if err := decode(data, &f); err != nil {
			return nil, err
		}
		return f, requireField("receiverId", f.ReceiverID)
	case TypeTypingStop:
		var f TypingStop
		if err := decode(data, &f); err != nil {
			return nil, err
		}
		return f, requireField("receiverId", f.ReceiverID)
	case TypeMessageDelivered:
		var f MessageDelivered
		if err := decode(data, &f); err != nil {
			return nil, err
		}
		return f, requireField("messageId", f.MessageID)
	case TypeMessageRead:
		var f MessageRead
		if err := decode(data, &f); err != nil {
			return nil, err
		}
		return f, requireField("messageId", f.MessageID)
	default:
		return nil, &ParseError{Text: ErrTextUnknownType, Cause: fmt.Errorf("type %q", t.Str)}
	}
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return &ParseError{Text: ErrTextInvalidFrame, Cause: err}
	}
	return nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ParseError{Text: ErrTextInvalidFrame, Cause: fmt.Errorf("%s is required", name)}
	}
	return nil
}
