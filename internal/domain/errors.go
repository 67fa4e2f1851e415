package domain

import "errors"

var (
	ErrProtocol            = errors.New("protocol error")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrUserNotFound        = errors.New("user not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrReceiptsUnavailable = errors.New("receipts unavailable")
	ErrInvalidEnvelope     = errors.New("invalid notification envelope")
	ErrUnauthenticated     = errors.New("unauthenticated")
)
