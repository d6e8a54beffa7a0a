package routing

import "errors"

var (
	ErrNoRoute     = errors.New("routing: no route to destination")
	ErrTtlExpired  = errors.New("routing: ttl expired")
	ErrDuplicate   = errors.New("routing: duplicate or looped payload")
)
