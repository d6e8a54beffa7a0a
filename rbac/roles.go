// Package rbac enforces spec.md §4.7's role model and control-message
// acceptance rule: every signed ControlMessage must carry an
// issuer_cert whose roles permit the message's Kind, and whose Scope
// matches a pattern that role grants.
package rbac

import (
	"strings"

	"github.com/genesis-mesh/node/trust"
)

// Role is one of the network's fixed role names, carried in a
// JoinCertificate's Roles field.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
	RoleAnchor   Role = "anchor"
	RoleClient   Role = "client"
)

// roleGrant is one role's allowed control kinds and scope patterns.
type roleGrant struct {
	kinds  map[trust.ControlKind]bool
	scopes []string
}

// DefaultRoleTable is the built-in role->capability table from spec.md's
// RBAC table. It is fixed: a PolicyManifest does not extend or
// override it.
var DefaultRoleTable = map[Role]roleGrant{
	RoleOperator: {
		kinds:  map[trust.ControlKind]bool{trust.ControlPolicyUpdate: true},
		scopes: []string{"policy:*"},
	},
	RoleAdmin: {
		kinds: map[trust.ControlKind]bool{
			trust.ControlPolicyUpdate: true,
			trust.ControlRevoke:       true,
			trust.ControlShutdown:     true,
		},
		scopes: []string{"*"},
	},
	RoleAnchor: {
		kinds: map[trust.ControlKind]bool{
			trust.ControlEmergencyCrlPush: true,
			trust.ControlRouteWithdraw:    true,
		},
		scopes: []string{"mesh:*"},
	},
	RoleClient: {
		kinds:  map[trust.ControlKind]bool{},
		scopes: nil,
	},
}

// scopeMatches implements the scope grammar: "*" matches anything,
// "prefix:*" matches any scope starting with "prefix:", anything else
// requires an exact match.
func scopeMatches(pattern, scope string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ":*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(scope, prefix)
	}
	return pattern == scope
}

// Permits reports whether role may issue a control message of kind
// over scope, per DefaultRoleTable.
func Permits(role Role, kind trust.ControlKind, scope string) bool {
	grant, ok := DefaultRoleTable[role]
	if !ok || !grant.kinds[kind] {
		return false
	}
	for _, pattern := range grant.scopes {
		if scopeMatches(pattern, scope) {
			return true
		}
	}
	return false
}

// AnyRolePermits reports whether any of roles permits kind over scope;
// a JoinCertificate may carry more than one role.
func AnyRolePermits(roles []string, kind trust.ControlKind, scope string) bool {
	for _, r := range roles {
		if Permits(Role(r), kind, scope) {
			return true
		}
	}
	return false
}

// AnyRoleHasKind reports whether any of roles is allowed to issue kind
// at all, independent of scope. Used to distinguish an unauthorized-role
// rejection from a scope-denied one.
func AnyRoleHasKind(roles []string, kind trust.ControlKind) bool {
	for _, r := range roles {
		if grant, ok := DefaultRoleTable[Role(r)]; ok && grant.kinds[kind] {
			return true
		}
	}
	return false
}
