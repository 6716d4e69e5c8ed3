package security

import (
	"errors"
	"testing"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

func TestRolePermissions(t *testing.T) {
	as := NewAuthorizationService(nil)

	if err := as.ValidatePermission(domain.RoleAdmin, PermManageProducts); err != nil {
		t.Fatalf("admin should manage products: %v", err)
	}
	if err := as.ValidatePermission(domain.RoleUser, PermManageProducts); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for user, got %v", err)
	}
	if !as.HasPermission(domain.RoleUser, PermReadProfile) {
		t.Fatal("user should read own profile")
	}
	if as.HasPermission("ghost", PermReadProfile) {
		t.Fatal("unknown role must have no permissions")
	}
	if len(as.GetRolePermissions(domain.RoleAdmin)) <= len(as.GetRolePermissions(domain.RoleUser)) {
		t.Fatal("admin should hold more permissions than user")
	}
}

func TestValidateResourceAccess(t *testing.T) {
	a := NewAuthorizationServiceV2(nil)
	perm := ResourcePermission{ResourceType: ResourceUser, ResourceID: "u-1", OwnerID: "u-1", Action: ActionRead}

	if err := a.ValidateResourceAccess("u-1", domain.RoleUser, perm); err != nil {
		t.Fatalf("owner should have access: %v", err)
	}
	if err := a.ValidateResourceAccess("u-2", domain.RoleAdmin, perm); err != nil {
		t.Fatalf("admin should have access: %v", err)
	}
	if err := a.ValidateResourceAccess("u-2", domain.RoleUser, perm); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
