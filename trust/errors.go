package trust

import "errors"

// Failure kinds for the trust chain, per the closed error taxonomy.
var (
	ErrBadSignature         = errors.New("trust: bad signature")
	ErrExpiredCert          = errors.New("trust: certificate expired")
	ErrRevokedCert          = errors.New("trust: certificate revoked")
	ErrUnknownIssuer        = errors.New("trust: unknown issuer")
	ErrCanonicalizationFail = errors.New("trust: canonicalization error")
	ErrNotYetValid          = errors.New("trust: object not yet valid")
	ErrSequenceNotIncreasing = errors.New("trust: sequence did not increase")
	ErrNoRoles              = errors.New("trust: subject has no roles")
	ErrChainBroken          = errors.New("trust: audit chain broken")
)
