package metrics

// Kind is one entry of the node's closed error taxonomy, per spec.md
// §7. It is a label value, not a Go error type: packages keep their
// own sentinel errors (trust.ErrBadSignature, routing.ErrNoRoute, ...)
// and map them to a Kind only at the point they record a metric.
type Kind string

const (
	KindConfig            Kind = "Config"
	KindIo                Kind = "Io"
	KindTimeout           Kind = "Timeout"
	KindBadSignature      Kind = "BadSignature"
	KindExpiredCert       Kind = "ExpiredCert"
	KindRevokedCert       Kind = "RevokedCert"
	KindUnknownIssuer     Kind = "UnknownIssuer"
	KindUnauthorizedRole  Kind = "UnauthorizedRole"
	KindReplayDetected    Kind = "ReplayDetected"
	KindNoRoute           Kind = "NoRoute"
	KindTtlExpired        Kind = "TtlExpired"
	KindPoolFull          Kind = "PoolFull"
	KindPeerBlacklisted   Kind = "PeerBlacklisted"
	KindRateLimited       Kind = "RateLimited"
	KindCanonicalization  Kind = "Canonicalization"
	KindProtocolViolation Kind = "ProtocolViolation"
	KindChainBroken       Kind = "ChainBroken"
)
