package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	jwtauth "github.com/jwalitptl/institute-api/pkg/auth"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/security"
)

const invalidCredentials = "invalid credentials"

type AuthService interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error)
	Authenticate(ctx context.Context, rawToken string) (*jwtauth.Claims, *model.Actor, error)
	Logout(ctx context.Context, claims *jwtauth.Claims) error
	Me(ctx context.Context, actor model.Actor) (*model.User, error)
	ChangePassword(ctx context.Context, actor model.Actor, req model.ChangePasswordRequest) error
}

type Service struct {
	userRepo repository.UserRepository
	tokens   repository.TokenStore
	hasher   security.PasswordHasher
	jwt      *jwtauth.JWTManager
	now      func() time.Time
}

func NewService(userRepo repository.UserRepository, tokens repository.TokenStore, hasher security.PasswordHasher, jwt *jwtauth.JWTManager) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
		jwt:      jwt,
		now:      time.Now,
	}
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return nil, errors.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, errors.Unauthorized(invalidCredentials)
	}
	if !user.Active {
		return nil, errors.Unauthorized("account is disabled")
	}

	token, claims, err := s.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.userRepo.TouchLogin(ctx, user.ID, s.now()); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to record login time")
	}

	return &model.LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	}, nil
}

// Authenticate validates a bearer token and resolves the caller. Revoked tokens and
// deactivated users are rejected even while the token itself is still valid.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*jwtauth.Claims, *model.Actor, error) {
	claims, err := s.jwt.Validate(rawToken)
	if err != nil {
		return nil, nil, errors.Unauthorized("invalid token")
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, nil, errors.Unauthorized("token has been revoked")
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return nil, nil, errors.Unauthorized("invalid token")
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.Active {
		return nil, nil, errors.Unauthorized("account is disabled")
	}

	return claims, &model.Actor{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// Logout revokes the token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims *jwtauth.Claims) error {
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.tokens.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	return s.userRepo.Get(ctx, actor.UserID)
}

func (s *Service) ChangePassword(ctx context.Context, actor model.Actor, req model.ChangePasswordRequest) error {
	user, err := s.userRepo.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return errors.BadRequest("current password is incorrect")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		if err == security.ErrPasswordTooShort {
			return errors.BadRequest("password must be at least %d characters", security.MinPasswordLen)
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator when no active admin exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (bool, error) {
	n, err := s.userRepo.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if email == "" || password == "" {
		return false, fmt.Errorf("no admin exists and bootstrap admin credentials are not configured")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	now := s.now()
	admin := &model.User{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Active:       true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	return true, nil
}
