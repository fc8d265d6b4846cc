package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
)

const activityColumns = `id, title, description, kind, starts_at, ends_at, location, capacity, price,
	image_url, active, created_at, updated_at`

type activityRepository struct {
	BaseRepository
}

func NewActivityRepository(db *sqlx.DB) repository.ActivityRepository {
	return &activityRepository{NewBaseRepository(db)}
}

func (r *activityRepository) Create(ctx context.Context, a *model.Activity) error {
	query := `
		INSERT INTO activities (` + activityColumns + `)
		VALUES (
			:id, :title, :description, :kind, :starts_at, :ends_at, :location, :capacity, :price,
			:image_url, :active, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, a)
	return mapError(err, "activity")
}

func (r *activityRepository) Get(ctx context.Context, id uuid.UUID) (*model.Activity, error) {
	var a model.Activity
	if err := r.db.GetContext(ctx, &a, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "activity")
	}
	return &a, nil
}

func (r *activityRepository) Update(ctx context.Context, a *model.Activity) error {
	query := `
		UPDATE activities SET
			title = :title, description = :description, kind = :kind, starts_at = :starts_at,
			ends_at = :ends_at, location = :location, capacity = :capacity, price = :price,
			image_url = :image_url, active = :active, updated_at = :updated_at
		WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, a)
	if err != nil {
		return mapError(err, "activity")
	}
	return expectAffected(res, "activity")
}

func (r *activityRepository) List(ctx context.Context, filter model.ActivityFilter) ([]*model.Activity, error) {
	var w where
	if !filter.IncludeDeleted {
		w.add("active")
	}
	if filter.Kind != "" {
		w.add("kind = ?", filter.Kind)
	}
	if filter.UpcomingAfter != nil {
		w.add("ends_at > ?", *filter.UpcomingAfter)
	}

	query := r.db.Rebind(`SELECT ` + activityColumns + ` FROM activities` + w.String() + ` ORDER BY starts_at`)
	var activities []*model.Activity
	if err := r.db.SelectContext(ctx, &activities, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}
