package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

type Post struct {
	Base
	AuthorID      uuid.UUID      `db:"author_id" json:"author_id"`
	Title         string         `db:"title" json:"title"`
	Slug          string         `db:"slug" json:"slug"`
	Excerpt       string         `db:"excerpt" json:"excerpt,omitempty"`
	Content       string         `db:"content" json:"content"`
	CoverImageURL string         `db:"cover_image_url" json:"cover_image_url,omitempty"`
	Tags          pq.StringArray `db:"tags" json:"tags"`
	Status        PostStatus     `db:"status" json:"status"`
	PublishedAt   *time.Time     `db:"published_at" json:"published_at,omitempty"`
}

type CreatePostRequest struct {
	Title         string     `json:"title" binding:"required,max=200"`
	Slug          string     `json:"slug" binding:"omitempty,slug,max=200"`
	Excerpt       string     `json:"excerpt" binding:"max=500"`
	Content       string     `json:"content" binding:"required"`
	CoverImageURL string     `json:"cover_image_url" binding:"omitempty,url"`
	Tags          []string   `json:"tags" binding:"max=20,dive,max=40"`
	Status        PostStatus `json:"status" binding:"omitempty,oneof=draft published"`
}

type UpdatePostRequest struct {
	Title         *string     `json:"title" binding:"omitempty,max=200"`
	Slug          *string     `json:"slug" binding:"omitempty,slug,max=200"`
	Excerpt       *string     `json:"excerpt" binding:"omitempty,max=500"`
	Content       *string     `json:"content"`
	CoverImageURL *string     `json:"cover_image_url" binding:"omitempty,url"`
	Tags          []string    `json:"tags" binding:"omitempty,max=20,dive,max=40"`
	Status        *PostStatus `json:"status" binding:"omitempty,oneof=draft published"`
}

type PostFilter struct {
	Tag      string     `form:"tag"`
	Status   PostStatus `form:"status"`
	AuthorID uuid.UUID  `form:"-"`
	Pagination
}
