package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/security"
)

type UserService interface {
	Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context, filter model.UserFilter) (model.Page[*model.User], error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateUserRequest) (*model.User, error)
	Deactivate(ctx context.Context, actor model.Actor, id uuid.UUID) error
	ListProfessionals(ctx context.Context) ([]model.ProfessionalProfile, error)
}

type Service struct {
	repo   repository.UserRepository
	hasher security.PasswordHasher
	now    func() time.Time
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if err == security.ErrPasswordTooShort {
			return nil, errors.BadRequest("password must be at least %d characters", security.MinPasswordLen)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		Base:          model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:          strings.TrimSpace(req.Name),
		Email:         normalizeEmail(req.Email),
		PasswordHash:  hash,
		Role:          req.Role,
		Phone:         req.Phone,
		Specialty:     req.Specialty,
		LicenseNumber: req.LicenseNumber,
		Bio:           req.Bio,
		PhotoURL:      req.PhotoURL,
		Active:        true,
	}
	if !user.Role.Valid() {
		return nil, errors.BadRequest("invalid role %q", req.Role)
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, errors.KindConflict) {
			return nil, errors.Conflict("a user with email %s already exists", user.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter model.UserFilter) (model.Page[*model.User], error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return model.Page[*model.User]{}, fmt.Errorf("failed to list users: %w", err)
	}
	return model.NewPage(users, total, filter.Pagination), nil
}

func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if id == actor.UserID {
		if req.Active != nil && !*req.Active {
			return nil, errors.BadRequest("you cannot deactivate your own account")
		}
		if req.Role != nil && *req.Role != user.Role {
			return nil, errors.BadRequest("you cannot change your own role")
		}
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = normalizeEmail(*req.Email)
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, errors.BadRequest("invalid role %q", *req.Role)
		}
		user.Role = *req.Role
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Specialty != nil {
		user.Specialty = *req.Specialty
	}
	if req.LicenseNumber != nil {
		user.LicenseNumber = *req.LicenseNumber
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.PhotoURL != nil {
		user.PhotoURL = *req.PhotoURL
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, errors.BadRequest("password must be at least %d characters", security.MinPasswordLen)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, errors.KindConflict) {
			return nil, errors.Conflict("a user with email %s already exists", user.Email)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// Deactivate soft-deletes a user.
func (s *Service) Deactivate(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if id == actor.UserID {
		return errors.BadRequest("you cannot deactivate your own account")
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !user.Active {
		return nil
	}
	user.Active = false
	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	return nil
}

func (s *Service) ListProfessionals(ctx context.Context) ([]model.ProfessionalProfile, error) {
	active := true
	users, _, err := s.repo.List(ctx, model.UserFilter{
		Role:       model.RoleProfessional,
		Active:     &active,
		Pagination: model.Pagination{Page: 1, PageSize: model.MaxPageSize},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list professionals: %w", err)
	}

	profiles := make([]model.ProfessionalProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}
