package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

type ActivityService interface {
	Create(ctx context.Context, req model.CreateActivityRequest) (*model.Activity, error)
	Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*model.Activity, error)
	Update(ctx context.Context, id uuid.UUID, req model.UpdateActivityRequest) (*model.Activity, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter model.ActivityFilter) ([]*model.Activity, error)
	Upcoming(ctx context.Context, kind model.ActivityKind) ([]*model.Activity, error)
}

type Service struct {
	repo repository.ActivityRepository
	now  func() time.Time
}

func NewService(repo repository.ActivityRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, req model.CreateActivityRequest) (*model.Activity, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return nil, errors.BadRequest("ends_at must be after starts_at")
	}

	now := s.now()
	activity := &model.Activity{
		Base:        model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Kind:        req.Kind,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Location:    req.Location,
		Capacity:    req.Capacity,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Active:      true,
	}
	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return activity, nil
}

// Get hides soft-deleted activities unless includeInactive is set.
func (s *Service) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*model.Activity, error) {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !activity.Active && !includeInactive {
		return nil, errors.NotFound("activity")
	}
	return activity, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req model.UpdateActivityRequest) (*model.Activity, error) {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		activity.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		activity.Description = *req.Description
	}
	if req.Kind != nil {
		activity.Kind = *req.Kind
	}
	if req.StartsAt != nil {
		activity.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		activity.EndsAt = *req.EndsAt
	}
	if req.Location != nil {
		activity.Location = *req.Location
	}
	if req.Capacity != nil {
		activity.Capacity = *req.Capacity
	}
	if req.Price != nil {
		activity.Price = *req.Price
	}
	if req.ImageURL != nil {
		activity.ImageURL = *req.ImageURL
	}
	if req.Active != nil {
		activity.Active = *req.Active
	}

	if !activity.EndsAt.After(activity.StartsAt) {
		return nil, errors.BadRequest("ends_at must be after starts_at")
	}
	activity.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}
	return activity, nil
}

// Delete soft-deletes the activity.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	activity.Active = false
	activity.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, activity); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter model.ActivityFilter) ([]*model.Activity, error) {
	activities, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	if activities == nil {
		activities = []*model.Activity{}
	}
	return activities, nil
}

// Upcoming lists active activities that have not ended yet.
func (s *Service) Upcoming(ctx context.Context, kind model.ActivityKind) ([]*model.Activity, error) {
	now := s.now()
	return s.List(ctx, model.ActivityFilter{Kind: kind, UpcomingAfter: &now})
}
