package carousel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/storage"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

const listKey = "carousel"

type CarouselService interface {
	List(ctx context.Context) ([]*model.CarouselImage, error)
	Upload(ctx context.Context, upload Upload) (*model.CarouselImage, error)
	Reorder(ctx context.Context, ids []uuid.UUID) ([]*model.CarouselImage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Upload is one image posted for the home page carousel.
type Upload struct {
	Title   string
	LinkURL string
	Content io.Reader
}

type Service struct {
	repo    repository.CarouselRepository
	store   storage.Store
	cache   *cache.Cache
	metrics *metrics.Domain
	now     func() time.Time
}

func NewService(repo repository.CarouselRepository, store storage.Store, m *metrics.Domain) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		cache:   cache.New(10*time.Minute, 20*time.Minute),
		metrics: m,
		now:     time.Now,
	}
}

func (s *Service) List(ctx context.Context) ([]*model.CarouselImage, error) {
	if cached, ok := s.cache.Get(listKey); ok {
		return cached.([]*model.CarouselImage), nil
	}

	images, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list carousel images: %w", err)
	}
	if images == nil {
		images = []*model.CarouselImage{}
	}
	s.cache.SetDefault(listKey, images)
	return images, nil
}

// Upload stores the image and appends it at the end of the carousel.
func (s *Service) Upload(ctx context.Context, upload Upload) (*model.CarouselImage, error) {
	file, err := s.store.Save(ctx, storage.Image, "carousel", upload.Content)
	if err != nil {
		return nil, err
	}

	position, err := s.repo.NextPosition(ctx)
	if err != nil {
		s.discard(ctx, file.Path)
		return nil, fmt.Errorf("failed to compute position: %w", err)
	}

	img := &model.CarouselImage{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(upload.Title),
		LinkURL:   strings.TrimSpace(upload.LinkURL),
		Path:      file.Path,
		URL:       file.URL,
		Position:  position,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, img); err != nil {
		s.discard(ctx, file.Path)
		return nil, fmt.Errorf("failed to create carousel image: %w", err)
	}

	s.cache.Delete(listKey)
	s.metrics.UploadsStored.WithLabelValues(storage.Image.Name).Inc()
	return img, nil
}

// Reorder sets positions from the order of ids, which must list every image exactly once.
func (s *Service) Reorder(ctx context.Context, ids []uuid.UUID) ([]*model.CarouselImage, error) {
	current, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list carousel images: %w", err)
	}

	known := make(map[uuid.UUID]bool, len(current))
	for _, img := range current {
		known[img.ID] = true
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, errors.BadRequest("unknown carousel image %s", id)
		}
		if seen[id] {
			return nil, errors.BadRequest("carousel image %s listed twice", id)
		}
		seen[id] = true
	}
	if len(ids) != len(current) {
		return nil, errors.BadRequest("order must list all %d carousel images", len(current))
	}

	if err := s.repo.Reorder(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to reorder carousel: %w", err)
	}
	s.cache.Delete(listKey)
	return s.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	img, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete carousel image: %w", err)
	}
	s.cache.Delete(listKey)
	s.discard(ctx, img.Path)
	return nil
}

func (s *Service) discard(ctx context.Context, path string) {
	if err := s.store.Delete(ctx, path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove carousel file")
	}
}
