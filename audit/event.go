package audit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// EventKind is the closed set of audit-worthy occurrences a node
// records. Every state-changing control event and every security
// decision appends exactly one of these.
type EventKind string

const (
	EventCertIssued         EventKind = "CertIssued"
	EventCertRenewed        EventKind = "CertRenewed"
	EventCertRevoked        EventKind = "CertRevoked"
	EventCertExpired        EventKind = "CertExpired"
	EventNodeStarted        EventKind = "NodeStarted"
	EventNodeStopped        EventKind = "NodeStopped"
	EventNodeJoined         EventKind = "NodeJoined"
	EventNodeLeft           EventKind = "NodeLeft"
	EventNodeBlacklisted    EventKind = "NodeBlacklisted"
	EventConnEstablished    EventKind = "ConnEstablished"
	EventConnFailed         EventKind = "ConnFailed"
	EventConnClosed         EventKind = "ConnClosed"
	EventControlReceived    EventKind = "ControlReceived"
	EventControlAccepted    EventKind = "ControlAccepted"
	EventControlRejected    EventKind = "ControlRejected"
	EventPolicyApplied      EventKind = "PolicyApplied"
	EventAuthSuccess        EventKind = "AuthSuccess"
	EventAuthFailure        EventKind = "AuthFailure"
	EventSignatureInvalid   EventKind = "SignatureInvalid"
	EventCrlUpdated         EventKind = "CrlUpdated"
	EventCrlInvalidSignature EventKind = "CrlInvalidSignature"
)

// ZeroHash is the prev_hash of the chain's genesis event.
var ZeroHash = [32]byte{}

// Event is one entry in the append-only audit hash chain.
type Event struct {
	Index     uint64                 `json:"index"`
	PrevHash  [32]byte               `json:"prev_hash"`
	Timestamp time.Time              `json:"timestamp"`
	Kind      EventKind              `json:"kind"`
	Actor     string                 `json:"actor"`
	Subject   string                 `json:"subject"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	ThisHash  [32]byte               `json:"this_hash"`
}

// canonicalFields mirrors trust.Canonicalize's exclusion rule but for the
// single field (this_hash) that must not participate in its own hash.
func canonicalFields(e *Event) ([]byte, error) {
	shadow := struct {
		Index     uint64                 `json:"index"`
		PrevHash  [32]byte               `json:"prev_hash"`
		Timestamp time.Time              `json:"timestamp"`
		Kind      EventKind              `json:"kind"`
		Actor     string                 `json:"actor"`
		Subject   string                 `json:"subject"`
		Detail    map[string]interface{} `json:"detail,omitempty"`
	}{e.Index, e.PrevHash, e.Timestamp, e.Kind, e.Actor, e.Subject, e.Detail}

	raw, err := json.Marshal(shadow)
	if err != nil {
		return nil, fmt.Errorf("audit: canonicalize event: %w", err)
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("audit: canonicalize event: %w", err)
	}
	return json.Marshal(asMap)
}

// computeHash returns H(prev_hash || canonical(fields except this_hash)).
func computeHash(e *Event) ([32]byte, error) {
	fields, err := canonicalFields(e)
	if err != nil {
		return [32]byte{}, err
	}
	buf := make([]byte, 0, len(e.PrevHash)+len(fields))
	buf = append(buf, e.PrevHash[:]...)
	buf = append(buf, fields...)
	return sha256.Sum256(buf), nil
}
