package rbac

import (
	"github.com/genesis-mesh/node/audit"
	"github.com/genesis-mesh/node/internal/logger"
	"github.com/genesis-mesh/node/trust"
)

// LogAudit adapts audit.Log to the Handler's Audit interface, appending
// one chained event per control-plane decision.
type LogAudit struct {
	log *audit.Log
}

// NewLogAudit wraps an already-open audit log.
func NewLogAudit(log *audit.Log) *LogAudit {
	return &LogAudit{log: log}
}

func (a *LogAudit) ControlReceived(msg *trust.ControlMessage) {
	a.append(audit.EventControlReceived, msg, nil)
}

func (a *LogAudit) ControlAccepted(msg *trust.ControlMessage) {
	a.append(audit.EventControlAccepted, msg, nil)
}

func (a *LogAudit) ControlRejected(msg *trust.ControlMessage, reason RejectReason) {
	a.append(audit.EventControlRejected, msg, map[string]interface{}{"reason": string(reason)})
}

func (a *LogAudit) append(kind audit.EventKind, msg *trust.ControlMessage, extra map[string]interface{}) {
	detail := map[string]interface{}{
		"message_id": msg.MessageID,
		"kind":       string(msg.Kind),
		"scope":      msg.Scope,
	}
	for k, v := range extra {
		detail[k] = v
	}
	if _, err := a.log.Append(kind, msg.IssuerCert.SubjectPubkey, msg.Scope, detail); err != nil {
		logger.ErrorMsg("failed to append control audit event", logger.Error(err))
	}
}
