package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
)

const postColumns = `id, author_id, title, slug, excerpt, content, cover_image_url, tags, status,
	published_at, created_at, updated_at`

type postRepository struct {
	BaseRepository
}

func NewPostRepository(db *sqlx.DB) repository.PostRepository {
	return &postRepository{NewBaseRepository(db)}
}

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES (
			:id, :author_id, :title, :slug, :excerpt, :content, :cover_image_url, :tags, :status,
			:published_at, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return mapError(err, "post")
}

func (r *postRepository) Get(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	var p model.Post
	if err := r.db.GetContext(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "post")
	}
	return &p, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	var p model.Post
	if err := r.db.GetContext(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE slug = $1`, slug); err != nil {
		return nil, mapError(err, "post")
	}
	return &p, nil
}

func (r *postRepository) Update(ctx context.Context, p *model.Post) error {
	query := `
		UPDATE posts SET
			title = :title, slug = :slug, excerpt = :excerpt, content = :content,
			cover_image_url = :cover_image_url, tags = :tags, status = :status,
			published_at = :published_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return mapError(err, "post")
	}
	return expectAffected(res, "post")
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "post")
	}
	return expectAffected(res, "post")
}

func (r *postRepository) List(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	var w where
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.AuthorID != uuid.Nil {
		w.add("author_id = ?", filter.AuthorID)
	}
	if filter.Tag != "" {
		w.add("? = ANY(tags)", filter.Tag)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM posts`+w.String()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	query := r.db.Rebind(`SELECT ` + postColumns + ` FROM posts` + w.String() +
		` ORDER BY COALESCE(published_at, created_at) DESC LIMIT ? OFFSET ?`)
	args := append(w.args, filter.Limit(), filter.Offset())

	var posts []*model.Post
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, total, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1 AND id <> $2)`, slug, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}
