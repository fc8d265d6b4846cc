package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
)

type carouselRepository struct {
	BaseRepository
}

func NewCarouselRepository(db *sqlx.DB) repository.CarouselRepository {
	return &carouselRepository{NewBaseRepository(db)}
}

func (r *carouselRepository) Create(ctx context.Context, img *model.CarouselImage) error {
	query := `
		INSERT INTO carousel_images (id, title, link_url, path, url, position, active, created_at)
		VALUES (:id, :title, :link_url, :path, :url, :position, :active, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, img)
	return mapError(err, "carousel image")
}

func (r *carouselRepository) Get(ctx context.Context, id uuid.UUID) (*model.CarouselImage, error) {
	var img model.CarouselImage
	if err := r.db.GetContext(ctx, &img, `SELECT * FROM carousel_images WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "carousel image")
	}
	return &img, nil
}

func (r *carouselRepository) List(ctx context.Context) ([]*model.CarouselImage, error) {
	var imgs []*model.CarouselImage
	if err := r.db.SelectContext(ctx, &imgs, `SELECT * FROM carousel_images WHERE active ORDER BY position, created_at`); err != nil {
		return nil, fmt.Errorf("failed to list carousel images: %w", err)
	}
	return imgs, nil
}

func (r *carouselRepository) NextPosition(ctx context.Context) (int, error) {
	var next int
	if err := r.db.GetContext(ctx, &next, `SELECT COALESCE(MAX(position) + 1, 0) FROM carousel_images`); err != nil {
		return 0, fmt.Errorf("failed to read carousel position: %w", err)
	}
	return next, nil
}

func (r *carouselRepository) Reorder(ctx context.Context, ids []uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i, id := range ids {
			res, err := tx.ExecContext(ctx, `UPDATE carousel_images SET position = $1 WHERE id = $2`, i, id)
			if err != nil {
				return mapError(err, "carousel image")
			}
			if err := expectAffected(res, "carousel image"); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *carouselRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM carousel_images WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "carousel image")
	}
	return expectAffected(res, "carousel image")
}
