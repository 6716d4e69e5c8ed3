package security

import (
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermManageProducts Permission = "manage_products"
	PermUploadImages   Permission = "upload_images"
	PermListUsers      Permission = "list_users"
	PermManageUsers    Permission = "manage_users"
	PermChangeRoles    Permission = "change_roles"
	PermReadProfile    Permission = "read_profile"
	PermUpdateProfile  Permission = "update_profile"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermManageProducts,
		PermUploadImages,
		PermListUsers,
		PermManageUsers,
		PermChangeRoles,
		PermReadProfile,
		PermUpdateProfile,
	},
	domain.RoleUser: {
		PermReadProfile,
		PermUpdateProfile,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return &domain.Error{
			Kind:    domain.ErrForbidden,
			Message: fmt.Sprintf("permission denied: %s role cannot %s", role, permission),
		}
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}
