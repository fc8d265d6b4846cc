package post

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

type PostService interface {
	Create(ctx context.Context, actor model.Actor, req model.CreatePostRequest) (*model.Post, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Post, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdatePostRequest) (*model.Post, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
	List(ctx context.Context, actor model.Actor, filter model.PostFilter) (model.Page[*model.Post], error)
	ListPublished(ctx context.Context, filter model.PostFilter) (model.Page[*model.Post], error)
	GetPublished(ctx context.Context, slug string) (*model.Post, error)
}

type Service struct {
	repo  repository.PostRepository
	cache *cache.Cache
	now   func() time.Time
}

func NewService(repo repository.PostRepository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, cacheCleanup),
		now:   time.Now,
	}
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req model.CreatePostRequest) (*model.Post, error) {
	slug := req.Slug
	if slug == "" {
		slug = Slugify(req.Title)
	}
	slug, err := s.uniqueSlug(ctx, slug, uuid.Nil, req.Slug != "")
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.PostStatusDraft
	}

	now := s.now()
	post := &model.Post{
		Base:          model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		AuthorID:      actor.UserID,
		Title:         strings.TrimSpace(req.Title),
		Slug:          slug,
		Excerpt:       req.Excerpt,
		Content:       req.Content,
		CoverImageURL: req.CoverImageURL,
		Tags:          normalizeTags(req.Tags),
		Status:        status,
	}
	if status == model.PostStatusPublished {
		post.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, post); err != nil {
		if errors.Is(err, errors.KindConflict) {
			return nil, errors.Conflict("slug %q is already in use", post.Slug)
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	s.cache.Flush()
	return post, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	return s.repo.Get(ctx, id)
}

// Update edits a post. PublishedAt is stamped the first time the post is published and
// kept when it returns to draft, so republishing does not move it in the listing.
func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdatePostRequest) (*model.Post, error) {
	post, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		post.Title = strings.TrimSpace(*req.Title)
	}
	if req.Slug != nil && *req.Slug != post.Slug {
		slug, err := s.uniqueSlug(ctx, *req.Slug, post.ID, true)
		if err != nil {
			return nil, err
		}
		post.Slug = slug
	}
	if req.Excerpt != nil {
		post.Excerpt = *req.Excerpt
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.CoverImageURL != nil {
		post.CoverImageURL = *req.CoverImageURL
	}
	if req.Tags != nil {
		post.Tags = normalizeTags(req.Tags)
	}

	now := s.now()
	if req.Status != nil {
		post.Status = *req.Status
		if post.Status == model.PostStatusPublished && post.PublishedAt == nil {
			post.PublishedAt = &now
		}
	}
	post.UpdatedAt = now

	if err := s.repo.Update(ctx, post); err != nil {
		if errors.Is(err, errors.KindConflict) {
			return nil, errors.Conflict("slug %q is already in use", post.Slug)
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	s.cache.Flush()
	return post, nil
}

func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	s.cache.Flush()
	return nil
}

// List is the authoring view: admins see every post, professionals their own.
func (s *Service) List(ctx context.Context, actor model.Actor, filter model.PostFilter) (model.Page[*model.Post], error) {
	if !actor.IsAdmin() {
		filter.AuthorID = actor.UserID
	}
	return s.list(ctx, filter)
}

func (s *Service) ListPublished(ctx context.Context, filter model.PostFilter) (model.Page[*model.Post], error) {
	filter.Status = model.PostStatusPublished
	filter.AuthorID = uuid.Nil
	filter.Tag = normalizeTag(filter.Tag)
	filter.Pagination = filter.Pagination.Normalize()

	key := fmt.Sprintf("posts:%s:%d:%d", filter.Tag, filter.Page, filter.PageSize)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(model.Page[*model.Post]), nil
	}

	page, err := s.list(ctx, filter)
	if err != nil {
		return page, err
	}
	s.cache.Set(key, page, cache.DefaultExpiration)
	return page, nil
}

func (s *Service) GetPublished(ctx context.Context, slug string) (*model.Post, error) {
	key := "post:" + slug
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Post), nil
	}

	post, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post.Status != model.PostStatusPublished {
		return nil, errors.NotFound("post")
	}
	s.cache.Set(key, post, cache.DefaultExpiration)
	return post, nil
}

func (s *Service) list(ctx context.Context, filter model.PostFilter) (model.Page[*model.Post], error) {
	filter.Tag = normalizeTag(filter.Tag)
	posts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return model.Page[*model.Post]{}, fmt.Errorf("failed to list posts: %w", err)
	}
	return model.NewPage(posts, total, filter.Pagination), nil
}

func (s *Service) owned(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && post.AuthorID != actor.UserID {
		return nil, errors.Forbidden("you can only edit your own posts")
	}
	return post, nil
}

// uniqueSlug returns slug, or a numbered variant of it when taken. An explicitly
// requested slug is never renamed.
func (s *Service) uniqueSlug(ctx context.Context, slug string, excludeID uuid.UUID, explicit bool) (string, error) {
	if slug == "" {
		slug = "post"
	}
	candidate := slug
	for i := 2; ; i++ {
		taken, err := s.repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		if explicit {
			return "", errors.Conflict("slug %q is already in use", slug)
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func normalizeTags(tags []string) pq.StringArray {
	out := pq.StringArray{}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
