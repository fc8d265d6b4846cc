package model

import (
	"time"

	"github.com/google/uuid"
)

type CarouselImage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Title     string    `db:"title" json:"title,omitempty"`
	LinkURL   string    `db:"link_url" json:"link_url,omitempty"`
	Path      string    `db:"path" json:"-"`
	URL       string    `db:"url" json:"url"`
	Position  int       `db:"position" json:"position"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ReorderCarouselRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}
