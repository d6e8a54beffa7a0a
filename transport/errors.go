package transport

import "errors"

var (
	ErrAuthFailed        = errors.New("transport: authentication failed")
	ErrPoolFull          = errors.New("transport: connection pool full")
	ErrFrameTooLarge     = errors.New("transport: frame exceeds max payload length")
	ErrUnknownKind       = errors.New("transport: unknown message kind")
	ErrTimeout           = errors.New("transport: timeout")
	ErrProtocolViolation = errors.New("transport: protocol violation")
	ErrClosed            = errors.New("transport: connection closed")
)
