package rbac

import (
	"testing"

	"github.com/genesis-mesh/node/trust"
)

func TestPermitsOperatorPolicyUpdate(t *testing.T) {
	if !Permits(RoleOperator, trust.ControlPolicyUpdate, "policy:routing") {
		t.Fatal("operator should be able to update policy:* scopes")
	}
}

func TestPermitsOperatorCannotRevoke(t *testing.T) {
	if Permits(RoleOperator, trust.ControlRevoke, "policy:routing") {
		t.Fatal("operator should not be able to revoke")
	}
}

func TestPermitsAdminWildcardScope(t *testing.T) {
	if !Permits(RoleAdmin, trust.ControlShutdown, "anything:at:all") {
		t.Fatal("admin's * scope should match anything")
	}
}

func TestPermitsAnchorOnlyEmergencyCrlPush(t *testing.T) {
	if !Permits(RoleAnchor, trust.ControlEmergencyCrlPush, "mesh:crl") {
		t.Fatal("anchor should be permitted emergency crl push under mesh:*")
	}
	if Permits(RoleAnchor, trust.ControlPolicyUpdate, "mesh:crl") {
		t.Fatal("anchor should not be permitted policy update")
	}
}

func TestPermitsClientHasNoGrants(t *testing.T) {
	if Permits(RoleClient, trust.ControlPolicyUpdate, "policy:*") {
		t.Fatal("client should have no control-plane grants")
	}
}

func TestScopeMatchesExactAndPrefix(t *testing.T) {
	if !scopeMatches("policy:*", "policy:routing") {
		t.Fatal("prefix pattern should match")
	}
	if scopeMatches("policy:*", "mesh:routing") {
		t.Fatal("prefix pattern should not match a different namespace")
	}
	if !scopeMatches("exact-scope", "exact-scope") {
		t.Fatal("exact pattern should match itself")
	}
	if scopeMatches("exact-scope", "other-scope") {
		t.Fatal("exact pattern should not match a different scope")
	}
}

func TestAnyRolePermitsChecksAllRoles(t *testing.T) {
	roles := []string{"client", "operator"}
	if !AnyRolePermits(roles, trust.ControlPolicyUpdate, "policy:x") {
		t.Fatal("operator role among roles should grant policy update")
	}
}
