package trust

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// NodeID is the canonical, base58-encoded form of a node's long-lived
// Ed25519 verification key. It doubles as a cert subject, a routing
// destination, and a peer-table key.
type NodeID string

// NodeIDFromPublicKey derives the canonical NodeID for an Ed25519 key.
func NodeIDFromPublicKey(pub ed25519.PublicKey) NodeID {
	return NodeID(base58.Encode(pub))
}

// PublicKey decodes the NodeID back into a verification key.
func (id NodeID) PublicKey() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed node id: %v", ErrBadSignature, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: node id decodes to %d bytes, want %d", ErrBadSignature, len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// Chain holds the trust state a node needs to validate every
// signature-bearing object it sees: the genesis block (and therefore the
// current Network Authority key) plus the latest CRL. It is read-mostly
// after genesis import; CRL replacement is the only mutation, performed
// by crlsync under the store's own lock.
type Chain struct {
	genesis *GenesisBlock
	naKey   ed25519.PublicKey
	rootKey ed25519.PublicKey
	crl     *CRL
}

// NewChain imports a genesis block after verifying the Root Sovereign's
// signature over it and the Network Authority's validity window.
func NewChain(genesis *GenesisBlock, now time.Time) (*Chain, error) {
	rootRaw, err := base58.Decode(genesis.RootPublicKey)
	if err != nil || len(rootRaw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: malformed root_public_key", ErrBadSignature)
	}
	rootKey := ed25519.PublicKey(rootRaw)

	if err := verifySigned(genesis, genesisSignatureKey(genesis, rootKey), rootKey); err != nil {
		return nil, err
	}

	naRaw, err := base58.Decode(genesis.NetworkAuthority.PublicKey)
	if err != nil || len(naRaw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: malformed network_authority.pubkey", ErrBadSignature)
	}
	if now.After(genesis.NetworkAuthority.ValidTo) {
		return nil, fmt.Errorf("%w: network authority validity window already closed", ErrExpiredCert)
	}

	return &Chain{
		genesis: genesis,
		naKey:   ed25519.PublicKey(naRaw),
		rootKey: rootKey,
		crl:     &CRL{Sequence: 0},
	}, nil
}

// genesisSignatureKey picks the KeySignature matching rootKey's key_id so
// NewChain can verify against the correct entry in a multi-signature
// genesis block (e.g. during NA rotation ceremonies).
func genesisSignatureKey(genesis *GenesisBlock, rootKey ed25519.PublicKey) []byte {
	rootKeyID := NodeIDFromPublicKey(rootKey)
	for _, sig := range genesis.Signatures {
		if sig.KeyID == string(rootKeyID) {
			return sig.Signature
		}
	}
	if len(genesis.Signatures) > 0 {
		return genesis.Signatures[0].Signature
	}
	return nil
}

// verifySigned canonicalizes obj (excluding any signature field) and
// checks sig against pub.
func verifySigned(obj interface{}, sig []byte, pub ed25519.PublicKey) error {
	payload, err := Canonicalize(obj)
	if err != nil {
		return err
	}
	if len(sig) == 0 || !ed25519.Verify(pub, payload, sig) {
		return ErrBadSignature
	}
	return nil
}

// NetworkAuthorityKey returns the NA key currently in force.
func (c *Chain) NetworkAuthorityKey() ed25519.PublicKey {
	return c.naKey
}

// RootKey returns the Root Sovereign key embedded at genesis.
func (c *Chain) RootKey() ed25519.PublicKey {
	return c.rootKey
}

// Genesis returns the imported genesis block.
func (c *Chain) Genesis() *GenesisBlock {
	return c.genesis
}

// CRL returns the currently held CRL snapshot.
func (c *Chain) CRL() *CRL {
	return c.crl
}

// ReplaceCRL installs newCRL iff it is validly signed by the current NA
// and its sequence number is strictly greater than the one held.
func (c *Chain) ReplaceCRL(newCRL *CRL) error {
	if newCRL.Sequence <= c.crl.Sequence {
		return ErrSequenceNotIncreasing
	}
	if err := verifySigned(newCRL, newCRL.Signature, c.naKey); err != nil {
		return err
	}
	c.crl = newCRL
	return nil
}

// VerifyCertificate checks that cert is currently valid: signed by the
// NA, within its validity window, carrying at least one role, and not
// present in the held CRL.
func (c *Chain) VerifyCertificate(cert *JoinCertificate, now time.Time) error {
	if len(cert.Roles) == 0 {
		return ErrNoRoles
	}
	if now.Before(cert.IssuedAt) {
		return ErrNotYetValid
	}
	if now.After(cert.ExpiresAt) {
		return ErrExpiredCert
	}
	if c.crl.Contains(cert.SubjectPubkey) {
		return ErrRevokedCert
	}
	if err := verifySigned(cert, cert.Signature, c.naKey); err != nil {
		return err
	}
	return nil
}

// VerifyPolicy checks a PolicyManifest's NA signature.
func (c *Chain) VerifyPolicy(policy *PolicyManifest) error {
	return verifySigned(policy, policy.Signature, c.naKey)
}

// VerifyControlMessage checks a ControlMessage's issuer signature. The
// issuer's own certificate must already have passed VerifyCertificate;
// role/scope authorization is rbac's responsibility, not the trust
// chain's.
func (c *Chain) VerifyControlMessage(msg *ControlMessage, now time.Time) error {
	if now.Before(msg.IssuedAt) || now.After(msg.ExpiresAt) {
		return ErrExpiredCert
	}
	issuerKey, err := NodeID(msg.IssuerCert.SubjectPubkey).PublicKey()
	if err != nil {
		return err
	}
	if err := c.VerifyCertificate(&msg.IssuerCert, now); err != nil {
		return err
	}
	return verifySigned(msg, msg.Signature, issuerKey)
}
