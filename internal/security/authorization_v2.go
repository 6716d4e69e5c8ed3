package security

import (
	"log/slog"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

// ResourceType identifies the kind of resource being accessed
type ResourceType string

const ResourceUser ResourceType = "user"

// Action identifies what operation is being performed
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// ResourcePermission describes an access to one specific resource
type ResourcePermission struct {
	ResourceType ResourceType
	ResourceID   string
	OwnerID      string // User ID that owns the resource
	Action       Action
}

// AuthorizationServiceV2 extends AuthorizationService with resource-level checks
type AuthorizationServiceV2 struct {
	logger *slog.Logger
}

// NewAuthorizationServiceV2 creates a new resource-aware authorization service
func NewAuthorizationServiceV2(logger *slog.Logger) *AuthorizationServiceV2 {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationServiceV2{logger: logger}
}

// ValidateResourceAccess allows admins everything and everyone else only
// resources they own. A user owns their own account.
func (a *AuthorizationServiceV2) ValidateResourceAccess(
	userID string,
	role domain.Role,
	perm ResourcePermission,
) error {
	if role == domain.RoleAdmin {
		return nil
	}

	if userID == "" || perm.OwnerID != userID {
		a.logger.Warn("resource access denied",
			slog.String("user_id", userID),
			slog.String("resource_id", perm.ResourceID),
			slog.String("resource_type", string(perm.ResourceType)),
			slog.String("action", string(perm.Action)),
		)
		return domain.ErrNotResourceOwner
	}

	return nil
}
