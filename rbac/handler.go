package rbac

import (
	"fmt"
	"time"

	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/internal/metrics"
	"github.com/genesis-mesh/node/trust"
)

// RejectReason names why a control message failed the acceptance rule,
// for the audit log's ControlRejected{reason} event.
type RejectReason string

const (
	RejectBadIssuerCert    RejectReason = "bad_issuer_cert"
	RejectUnauthorizedRole RejectReason = "unauthorized_role"
	RejectScopeDenied      RejectReason = "scope_denied"
	RejectBadSignature     RejectReason = "bad_signature"
	RejectExpired          RejectReason = "expired"
	RejectReplay           RejectReason = "replay_detected"
)

// DispatchAction is what the node's control dispatcher should do after
// a ControlMessage is accepted.
type DispatchAction string

const (
	ActionApplyPolicy   DispatchAction = "apply_policy"
	ActionApplyCRL      DispatchAction = "apply_crl"
	ActionWithdrawRoute DispatchAction = "withdraw_route"
	ActionShutdown      DispatchAction = "shutdown"
	ActionNone          DispatchAction = "none"
)

// Audit records the control-plane events the acceptance rule must
// always emit, whatever the outcome.
type Audit interface {
	ControlReceived(msg *trust.ControlMessage)
	ControlAccepted(msg *trust.ControlMessage)
	ControlRejected(msg *trust.ControlMessage, reason RejectReason)
}

// ReputationSink lets the handler degrade an issuer-peer's reputation
// on rejection, per spec.md §4.7's "optionally reduce issuer-peer
// reputation" clause.
type ReputationSink interface {
	RecordBad(peer trust.NodeID) bool
}

// Handler enforces the 6-point acceptance rule from spec.md §4.7 and
// dispatches accepted messages.
type Handler struct {
	chain      *trust.Chain
	replay     *ReplayCache
	audit      Audit
	reputation ReputationSink
}

// NewHandler builds a Handler bound to chain for certificate/signature
// verification, replay for dedup, and the optional audit/reputation sinks.
func NewHandler(chain *trust.Chain, replay *ReplayCache, audit Audit, reputation ReputationSink) *Handler {
	return &Handler{chain: chain, replay: replay, audit: audit, reputation: reputation}
}

// Handle applies the acceptance rule to msg arriving from peer, logging
// to audit and returning the action the caller's dispatcher should take.
func (h *Handler) Handle(msg *trust.ControlMessage, peer trust.NodeID, now time.Time) (DispatchAction, error) {
	h.audit.ControlReceived(msg)

	if err := h.chain.VerifyControlMessage(msg, now); err != nil {
		return h.reject(msg, peer, RejectBadIssuerCert, err)
	}

	if !AnyRoleHasKind(msg.IssuerCert.Roles, msg.Kind) {
		return h.reject(msg, peer, RejectUnauthorizedRole,
			fmt.Errorf("rbac: roles %v not permitted to issue %s", msg.IssuerCert.Roles, msg.Kind))
	}

	if !AnyRolePermits(msg.IssuerCert.Roles, msg.Kind, msg.Scope) {
		return h.reject(msg, peer, RejectScopeDenied,
			fmt.Errorf("rbac: scope %q not permitted for %s", msg.Scope, msg.Kind))
	}

	if h.replay.SeenOrRecord(msg.MessageID) {
		return h.reject(msg, peer, RejectReplay, fmt.Errorf("rbac: message_id %s already seen", msg.MessageID))
	}

	h.audit.ControlAccepted(msg)
	return h.dispatchAction(msg.Kind), nil
}

func (h *Handler) dispatchAction(kind trust.ControlKind) DispatchAction {
	switch kind {
	case trust.ControlPolicyUpdate:
		return ActionApplyPolicy
	case trust.ControlRevoke, trust.ControlEmergencyCrlPush:
		return ActionApplyCRL
	case trust.ControlRouteWithdraw:
		return ActionWithdrawRoute
	case trust.ControlShutdown:
		return ActionShutdown
	default:
		return ActionNone
	}
}

func (h *Handler) reject(msg *trust.ControlMessage, peer trust.NodeID, reason RejectReason, cause error) (DispatchAction, error) {
	h.audit.ControlRejected(msg, reason)
	if h.reputation != nil {
		h.reputation.RecordBad(peer)
	}
	metrics.RecordError(kindForReject(reason, cause))
	if reason == RejectReplay {
		metrics.ReplayAttacksDetected.Inc()
	}
	logger.Warn("control message rejected", logger.String("reason", string(reason)), logger.Error(cause))
	return ActionNone, cause
}

// kindForReject maps a rejection to the error-taxonomy Kind it
// represents for the errors_total metric. RejectBadIssuerCert wraps
// whatever the trust chain actually failed on (signature, expiry,
// revocation), so it defers to metrics.Classify on cause; every other
// reason already names its own kind.
func kindForReject(reason RejectReason, cause error) metrics.Kind {
	switch reason {
	case RejectBadIssuerCert:
		return metrics.Classify(cause)
	case RejectUnauthorizedRole, RejectScopeDenied:
		return metrics.KindUnauthorizedRole
	case RejectBadSignature:
		return metrics.KindBadSignature
	case RejectExpired:
		return metrics.KindExpiredCert
	case RejectReplay:
		return metrics.KindReplayDetected
	default:
		return metrics.KindProtocolViolation
	}
}
