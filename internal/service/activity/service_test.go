package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

func TestActivityLifecycle(t *testing.T) {
	store := repotest.NewStore()
	svc := NewService(store.Activities)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Create(ctx, model.CreateActivityRequest{
		Title: "Backwards", Kind: model.ActivityWorkshop,
		StartsAt: now.Add(2 * time.Hour), EndsAt: now.Add(time.Hour),
	})
	assert.True(t, errors.Is(err, errors.KindBadRequest))

	_, err = svc.Create(ctx, model.CreateActivityRequest{
		Title: "Past", Kind: model.ActivityGroup,
		StartsAt: now.Add(-48 * time.Hour), EndsAt: now.Add(-47 * time.Hour),
	})
	require.NoError(t, err)
	upcoming, err := svc.Create(ctx, model.CreateActivityRequest{
		Title: " Mindfulness ", Kind: model.ActivityWorkshop, Capacity: 12, Price: 5000,
		StartsAt: now.Add(24 * time.Hour), EndsAt: now.Add(26 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "Mindfulness", upcoming.Title)

	list, err := svc.Upcoming(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, upcoming.ID, list[0].ID)

	ends := upcoming.StartsAt.Add(-time.Minute)
	_, err = svc.Update(ctx, upcoming.ID, model.UpdateActivityRequest{EndsAt: &ends})
	assert.True(t, errors.Is(err, errors.KindBadRequest))

	require.NoError(t, svc.Delete(ctx, upcoming.ID))
	_, err = svc.Get(ctx, upcoming.ID, false)
	assert.True(t, errors.Is(err, errors.KindNotFound))

	got, err := svc.Get(ctx, upcoming.ID, true)
	require.NoError(t, err)
	assert.False(t, got.Active)

	all, err := svc.List(ctx, model.ActivityFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
