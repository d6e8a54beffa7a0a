package trust

import (
	"time"

	"github.com/genesis-mesh/node/crypto"
)

// KeySignature pairs a key identifier with the raw signature bytes it
// produced, so a verifier can select the right public key before
// checking the signature.
type KeySignature struct {
	KeyID     string `json:"key_id"`
	Signature []byte `json:"sig"`
}

// NetworkAuthorityRef describes the NA key embedded at genesis time,
// including the validity window the Root Sovereign granted it.
type NetworkAuthorityRef struct {
	PublicKey string    `json:"pubkey"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

// ManifestRef points at the out-of-band policy manifest a genesis block
// was published alongside, identified by content hash.
type ManifestRef struct {
	Hash string `json:"hash"`
	URL  string `json:"url"`
}

// GenesisBlock is the network's signed constitution. It is the root of
// every other trust decision the node makes.
type GenesisBlock struct {
	NetworkName         string              `json:"network_name"`
	Version             string              `json:"version"`
	RootPublicKey       string              `json:"root_public_key"`
	NetworkAuthority    NetworkAuthorityRef `json:"network_authority"`
	AllowedCryptoSuites []crypto.KeyType    `json:"allowed_crypto_suites"`
	AllowedTransports   []string            `json:"allowed_transports"`
	PolicyManifestRef   ManifestRef         `json:"policy_manifest_ref"`
	BootstrapAnchors    []string            `json:"bootstrap_anchors"`
	Signatures          []KeySignature      `json:"signatures"`
}

// JoinCertificate binds a node's public key to a role set for a bounded
// window, signed by the Network Authority active at issuance time.
type JoinCertificate struct {
	SubjectPubkey string    `json:"subject_pubkey"`
	Roles         []string  `json:"roles"`
	Scopes        []string  `json:"scopes"`
	NetworkID     string    `json:"network_id"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Serial        uint64    `json:"serial"`
	IssuerKeyID   string    `json:"issuer_key_id"`
	Signature     []byte    `json:"signature"`
}

// RoutingPolicy is the routing-relevant subset of a PolicyManifest.
type RoutingPolicy struct {
	PreferredTransports []string `json:"preferred_transports"`
	MaxHops             int      `json:"max_hops"`
}

// PolicyManifest carries the operational parameters the NA publishes
// for the whole network: allowed ports/services, minimum client
// version, and routing limits.
type PolicyManifest struct {
	PolicyID         uint64        `json:"policy_id"`
	IssuedAt         time.Time     `json:"issued_at"`
	IssuedBy         string        `json:"issued_by"`
	MinClientVersion string        `json:"min_client_version"`
	AllowedPorts     []int         `json:"allowed_ports"`
	AllowedServices  []string      `json:"allowed_services"`
	Routing          RoutingPolicy `json:"routing"`
	Signature        []byte        `json:"signature"`
}

// ControlKind enumerates the signed administrative commands the control
// plane accepts. EmergencyCrlPush carries a full CRL inline so it can
// reach anchors even when the normal gossip path is down.
type ControlKind string

const (
	ControlPolicyUpdate     ControlKind = "PolicyUpdate"
	ControlRevoke           ControlKind = "Revoke"
	ControlShutdown         ControlKind = "Shutdown"
	ControlEmergencyCrlPush ControlKind = "EmergencyCrlPush"
	ControlRouteWithdraw    ControlKind = "RouteWithdraw"
)

// ControlMessage is a signed administrative command. issuer_cert must
// carry a role authorizing Kind over Scope; see rbac.Handler.
type ControlMessage struct {
	MessageID  string          `json:"message_id"`
	Kind       ControlKind     `json:"kind"`
	Scope      string          `json:"scope"`
	Payload    []byte          `json:"payload"`
	IssuedAt   time.Time       `json:"issued_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	IssuerCert JoinCertificate `json:"issuer_cert"`

	// IDToken carries an operator's OIDC ID token alongside the Ed25519
	// signature, for Kinds whose role requires the extra factor. See
	// rbac/oidc.Gate; empty for roles that don't gate on it.
	IDToken string `json:"id_token,omitempty"`
	Signature  []byte          `json:"signature"`
}

// Revocation is a single entry in a CRL: a subject key that is no
// longer trusted, with the reason and instant it was cut off.
type Revocation struct {
	SubjectPubkey string    `json:"subject_pubkey"`
	Reason        string    `json:"reason"`
	RevokedAt     time.Time `json:"revoked_at"`
}

// CRL is the network's authoritative revocation snapshot. Sequence is
// monotonic; a higher-sequence CRL always supersedes, and an entry
// present in a CRL never disappears from a later one.
type CRL struct {
	Sequence    uint64       `json:"sequence"`
	IssuedAt    time.Time    `json:"issued_at"`
	Revocations []Revocation `json:"revocations"`
	Signature   []byte       `json:"signature"`
}

// Contains reports whether subjectPubkey is revoked in this snapshot.
func (c *CRL) Contains(subjectPubkey string) bool {
	for _, r := range c.Revocations {
		if r.SubjectPubkey == subjectPubkey {
			return true
		}
	}
	return false
}

// Merge returns a new CRL containing the union of c and other's
// revocations, keeping the higher sequence number. Used when an
// emergency push and normal gossip race for the same network.
func (c *CRL) Merge(other *CRL) *CRL {
	seq := c.Sequence
	if other.Sequence > seq {
		seq = other.Sequence
	}
	seen := make(map[string]bool, len(c.Revocations)+len(other.Revocations))
	merged := make([]Revocation, 0, len(c.Revocations)+len(other.Revocations))
	for _, list := range [][]Revocation{c.Revocations, other.Revocations} {
		for _, r := range list {
			if seen[r.SubjectPubkey] {
				continue
			}
			seen[r.SubjectPubkey] = true
			merged = append(merged, r)
		}
	}
	issuedAt := c.IssuedAt
	if other.IssuedAt.After(issuedAt) {
		issuedAt = other.IssuedAt
	}
	return &CRL{Sequence: seq, IssuedAt: issuedAt, Revocations: merged}
}
