package metrics

import (
	"errors"

	"github.com/genesis-mesh/node/audit"
	"github.com/genesis-mesh/node/routing"
	"github.com/genesis-mesh/node/transport"
	"github.com/genesis-mesh/node/trust"
)

// Classify maps err against the sentinel errors this repo's packages
// already define, returning the Kind a caller should record. Callers
// that already know their kind (an RBAC RejectReason, a peer
// blacklisting) skip this and call RecordError directly.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, trust.ErrBadSignature):
		return KindBadSignature
	case errors.Is(err, trust.ErrExpiredCert), errors.Is(err, trust.ErrNotYetValid):
		return KindExpiredCert
	case errors.Is(err, trust.ErrRevokedCert):
		return KindRevokedCert
	case errors.Is(err, trust.ErrNoRoles):
		return KindUnauthorizedRole
	case errors.Is(err, trust.ErrCanonicalizationFail):
		return KindCanonicalization
	case errors.Is(err, trust.ErrChainBroken), errors.Is(err, audit.ErrChainBroken):
		return KindChainBroken
	case errors.Is(err, routing.ErrNoRoute):
		return KindNoRoute
	case errors.Is(err, routing.ErrTtlExpired):
		return KindTtlExpired
	case errors.Is(err, routing.ErrDuplicate):
		return KindReplayDetected
	case errors.Is(err, transport.ErrPoolFull):
		return KindPoolFull
	case errors.Is(err, transport.ErrProtocolViolation), errors.Is(err, transport.ErrUnknownKind), errors.Is(err, transport.ErrFrameTooLarge):
		return KindProtocolViolation
	case errors.Is(err, transport.ErrTimeout):
		return KindTimeout
	default:
		return KindIo
	}
}

// RecordClassified is a convenience for call sites that only have an
// error, not an already-known Kind.
func RecordClassified(err error) {
	if kind := Classify(err); kind != "" {
		RecordError(kind)
	}
}
