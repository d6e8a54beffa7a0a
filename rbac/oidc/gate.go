// Package oidc layers an optional human-operator authentication factor
// on top of rbac's mandatory signature check, for control messages
// issued under the admin or operator roles. It is never a substitute
// for the Ed25519 signature verified by rbac.Handler — only an
// additional gate checked after rbac.Handler has accepted a message.
package oidc

import (
	"context"
	"fmt"

	"github.com/genesis-mesh/node/oidc"
	"github.com/genesis-mesh/node/rbac"
	"github.com/genesis-mesh/node/trust"
)

// Envelope carries an operator's OIDC ID token alongside the signed
// control message it authorizes; the node fills it from the
// ControlMessage's IDToken field.
type Envelope struct {
	IDToken string `json:"id_token"`
}

// RequiredClaim is the ID token claim that must equal the issuer
// certificate's subject, binding the human operator's identity to the
// node identity that signed the control message.
const RequiredClaim = "sub"

// Gate wraps an oidc.OIDCProvider to additionally authenticate
// admin/operator-issued control messages.
type Gate struct {
	provider   oidc.OIDCProvider
	gatedRoles map[rbac.Role]bool
}

// NewGate restricts the additional factor to roles (typically admin
// and operator); other roles pass through ungated.
func NewGate(provider oidc.OIDCProvider, roles ...rbac.Role) *Gate {
	gated := make(map[rbac.Role]bool, len(roles))
	for _, r := range roles {
		gated[r] = true
	}
	return &Gate{provider: provider, gatedRoles: gated}
}

func (g *Gate) requiresFactor(roles []string) bool {
	for _, r := range roles {
		if g.gatedRoles[rbac.Role(r)] {
			return true
		}
	}
	return false
}

// Verify checks env's ID token against the issuer cert's subject when
// one of the message's roles is gated. Messages from ungated roles
// (e.g. anchor) return nil without consulting the provider.
func (g *Gate) Verify(ctx context.Context, cert *trust.JoinCertificate, env Envelope) error {
	if !g.requiresFactor(cert.Roles) {
		return nil
	}
	if env.IDToken == "" {
		return fmt.Errorf("rbac/oidc: id token required for roles %v", cert.Roles)
	}
	claims, err := g.provider.VerifyIDToken(ctx, env.IDToken)
	if err != nil {
		return fmt.Errorf("rbac/oidc: verify id token: %w", err)
	}
	sub, _ := claims[RequiredClaim].(string)
	if sub == "" || sub != cert.SubjectPubkey {
		return fmt.Errorf("rbac/oidc: id token subject does not match issuer certificate")
	}
	return nil
}
