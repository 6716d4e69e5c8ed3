package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/tracing"
	"github.com/aryan0dhankhar/productcatalog/internal/security/auth"
	"github.com/aryan0dhankhar/productcatalog/internal/validator"
	"github.com/aryan0dhankhar/productcatalog/pkg/cache"
)

const (
	keyUserList   = "users:list"
	keyUserPrefix = "users:id:"
)

// UserService owns the user lifecycle. Users leave the service sanitized;
// password hashes never reach callers or the cache.
type UserService struct {
	repo      domain.UserRepository
	hasher    *auth.PasswordHasher
	validator *validator.Validator
	cache     *cache.Cache
	logger    *slog.Logger
}

func NewUserService(
	repo domain.UserRepository,
	hasher *auth.PasswordHasher,
	v *validator.Validator,
	c *cache.Cache,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	if hasher == nil {
		hasher = auth.NewPasswordHasher(auth.DefaultCost)
	}
	if v == nil {
		v = validator.NewValidator()
	}
	if c == nil {
		c = cache.New(nil, 0)
	}
	return &UserService{repo: repo, hasher: hasher, validator: v, cache: c, logger: logger}
}

// Create registers a user. The role defaults to user and the account starts active.
func (s *UserService) Create(ctx context.Context, in *domain.UserInput) (_ *domain.User, err error) {
	ctx, span := tracing.Start(ctx, "UserService.Create")
	defer func() { tracing.End(span, err); observe("user", "create", err) }()

	if err := s.validator.ValidateUserInput(in); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, domain.Conflict("User with this email already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	return cache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.User, []cache.Tag, error) {
		user := &domain.User{
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: hash,
			Role:         role,
			IsActive:     true,
		}
		if err := s.repo.Insert(ctx, user); err != nil {
			return nil, nil, err
		}
		s.logger.Info("user created",
			slog.String("user_id", user.ID),
			slog.String("role", string(user.Role)),
		)
		return user.Sanitized(), cache.UserChanged(user.ID), nil
	})
}

// Authenticate checks, in order, that the email exists, that the password
// matches and that the account is active. The first two failures are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (_ *domain.User, err error) {
	ctx, span := tracing.Start(ctx, "UserService.Authenticate")
	defer func() { tracing.End(span, err) }()

	user, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, domain.ErrAccountDeactivated
	}
	return user.Sanitized(), nil
}

func (s *UserService) List(ctx context.Context) (_ []*domain.User, err error) {
	ctx, span := tracing.Start(ctx, "UserService.List")
	defer func() { tracing.End(span, err) }()

	return cache.QueryTagged(ctx, s.cache, keyUserList, []cache.Tag{cache.UserListTag()}, func(ctx context.Context) ([]*domain.User, []cache.Tag, error) {
		users, err := s.repo.List(ctx)
		if err != nil {
			return nil, nil, err
		}
		ids := make([]string, len(users))
		for i, u := range users {
			users[i] = u.Sanitized()
			ids[i] = u.ID
		}
		return users, cache.UserListTags(ids), nil
	})
}

func (s *UserService) Get(ctx context.Context, id string) (_ *domain.User, err error) {
	ctx, span := tracing.Start(ctx, "UserService.Get")
	defer func() { tracing.End(span, err) }()

	return cache.QueryTagged(ctx, s.cache, keyUserPrefix+id, []cache.Tag{cache.UserTag(id)}, func(ctx context.Context) (*domain.User, []cache.Tag, error) {
		user, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return user.Sanitized(), []cache.Tag{cache.UserTag(user.ID)}, nil
	})
}

// Update applies upd to the user with id on behalf of a caller holding
// actorRole. A new password is hashed before it is stored and only admins may
// change roles.
func (s *UserService) Update(ctx context.Context, id string, upd domain.UserUpdate, actorRole domain.Role) (_ *domain.User, err error) {
	ctx, span := tracing.Start(ctx, "UserService.Update")
	defer func() { tracing.End(span, err); observe("user", "update", err) }()

	if err := s.validator.ValidateUserUpdate(&upd); err != nil {
		return nil, err
	}
	if upd.Role != nil && actorRole != domain.RoleAdmin {
		return nil, domain.ErrRoleChangeForbidden
	}

	patch := domain.UserPatch{Email: upd.Email, Name: upd.Name, Role: upd.Role}
	if upd.Password != nil {
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	return s.patch(ctx, id, patch, "user updated")
}

// Deactivate marks the account inactive without deleting it
func (s *UserService) Deactivate(ctx context.Context, id string) (_ *domain.User, err error) {
	ctx, span := tracing.Start(ctx, "UserService.Deactivate")
	defer func() { tracing.End(span, err); observe("user", "deactivate", err) }()

	inactive := false
	return s.patch(ctx, id, domain.UserPatch{IsActive: &inactive}, "user deactivated")
}

func (s *UserService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.Start(ctx, "UserService.Delete")
	defer func() { tracing.End(span, err); observe("user", "delete", err) }()

	_, err = cache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.User, []cache.Tag, error) {
		deleted, err := s.repo.DeleteByID(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info("user deleted", slog.String("user_id", id))
		return deleted.Sanitized(), cache.UserChanged(id), nil
	})
	return err
}

func (s *UserService) patch(ctx context.Context, id string, patch domain.UserPatch, msg string) (*domain.User, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}
	return cache.Mutate(ctx, s.cache, func(ctx context.Context) (*domain.User, []cache.Tag, error) {
		updated, err := s.repo.UpdateByID(ctx, id, patch)
		if err != nil {
			return nil, nil, err
		}
		s.logger.Info(msg, slog.String("user_id", id))
		return updated.Sanitized(), cache.UserChanged(id), nil
	})
}
