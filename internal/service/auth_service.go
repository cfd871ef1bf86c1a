package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/auth"
	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/repository"
	apperrors "github.com/siladan/servicedesk/pkg/util"
)

// AuthService authenticates users and issues tokens.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// LoginResult carries the issued token and its owner.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and returns a signed JWT. Unknown email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role, user.UnitID)
	if err != nil {
		s.logger.Error("token generation failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
