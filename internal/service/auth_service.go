package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
	"github.com/aryan0dhankhar/productcatalog/internal/observability/metrics"
	"github.com/aryan0dhankhar/productcatalog/internal/security/audit"
	"github.com/aryan0dhankhar/productcatalog/internal/security/auth"
)

// AuthService handles authentication operations
type AuthService struct {
	users    *UserService
	tokens   *auth.TokenManager
	auditLog *audit.Logger
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users *UserService,
	tokens *auth.TokenManager,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}

	return &AuthService{
		users:    users,
		tokens:   tokens,
		auditLog: auditLog,
		logger:   logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expires_in"` // seconds
	TokenType string       `json:"token_type"`
}

// Login authenticates a user and returns a signed token
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		metrics.ObserveLogin("invalid")
		return nil, domain.Validation("email and password are required", nil)
	}

	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			metrics.ObserveLogin("rejected")
			s.auditLog.LogLogin(ctx, email, "failed", de.Message)
		} else {
			metrics.ObserveLogin("error")
			s.logger.Error("login failed", slog.String("error", err.Error()))
		}
		return nil, err
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		metrics.ObserveLogin("error")
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, err
	}

	metrics.ObserveLogin("success")
	s.auditLog.LogLogin(ctx, email, "success", "")
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &LoginResult{
		User:      user,
		Token:     token,
		ExpiresIn: int(s.tokens.Expiry().Seconds()),
		TokenType: "Bearer",
	}, nil
}

// VerifyToken checks the token signature and then that its user still exists
// and is active. The returned claims carry the user's current role.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("token validation failed", slog.String("error", err.Error()))
		return nil, domain.ErrMissingCredential
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidOrInactive
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidOrInactive
	}

	claims.Email = user.Email
	claims.Role = user.Role
	return claims, nil
}
