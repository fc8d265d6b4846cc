package finance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	"github.com/jwalitptl/institute-api/internal/schedule"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

func apt(prof uuid.UUID, start time.Time, price int64, status model.AppointmentStatus, pay model.PaymentStatus) *model.Appointment {
	return &model.Appointment{
		Base:           model.Base{ID: uuid.New()},
		PatientID:      uuid.New(),
		ProfessionalID: prof,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Status:         status,
		Price:          price,
		PaymentStatus:  pay,
	}
}

func TestSummarize(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	mar := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	apr := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	summary := Summarize([]*model.Appointment{
		apt(a, mar, 100, model.AppointmentStatusCompleted, model.PaymentStatusPaid),
		apt(a, mar, 100, model.AppointmentStatusScheduled, model.PaymentStatusPending),
		apt(b, apr, 300, model.AppointmentStatusCompleted, model.PaymentStatusWaived),
		apt(b, apr, 999, model.AppointmentStatusCancelled, model.PaymentStatusPending),
	}, time.UTC)

	assert.Equal(t, model.Totals{Appointments: 3, Billed: 500, Paid: 100, Pending: 100, Waived: 300}, summary.Totals)

	require.Len(t, summary.ByMonth, 2)
	assert.Equal(t, "2026-03", summary.ByMonth[0].Month)
	assert.Equal(t, int64(200), summary.ByMonth[0].Billed)
	assert.Equal(t, "2026-04", summary.ByMonth[1].Month)

	require.Len(t, summary.ByProfessional, 2)
	assert.Equal(t, b, summary.ByProfessional[0].ProfessionalID, "highest billed first")
}

func TestSummarizeUsesLocationForMonth(t *testing.T) {
	brt := time.FixedZone("BRT", -3*3600)
	start := time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC) // still March 31 in BRT

	summary := Summarize([]*model.Appointment{
		apt(uuid.New(), start, 100, model.AppointmentStatusCompleted, model.PaymentStatusPaid),
	}, brt)

	require.Len(t, summary.ByMonth, 1)
	assert.Equal(t, "2026-03", summary.ByMonth[0].Month)
}

func TestSummaryScopes(t *testing.T) {
	store := repotest.NewStore()
	svc := NewService(store.Appointments, time.UTC)
	ctx := context.Background()

	prof := store.NewUser(model.RoleProfessional)
	other := store.NewUser(model.RoleProfessional)
	day := schedule.Interval{Start: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)}
	noCheck := func([]*model.Appointment) error { return nil }
	for _, p := range []uuid.UUID{prof.ID, other.ID} {
		a := apt(p, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 100, model.AppointmentStatusCompleted, model.PaymentStatusPaid)
		require.NoError(t, store.Appointments.CreateChecked(ctx, a, day, noCheck))
	}

	own, err := svc.Summary(ctx, repotest.ActorFor(prof), model.FinanceFilter{ProfessionalID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, own.Totals.Appointments)
	assert.Equal(t, prof.ID, own.ByProfessional[0].ProfessionalID)

	all, err := svc.Summary(ctx, repotest.ActorFor(store.NewUser(model.RoleAdmin)), model.FinanceFilter{From: "2026-03-10", To: "2026-03-10"})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Totals.Appointments, "to is inclusive")

	_, err = svc.Summary(ctx, repotest.ActorFor(store.NewUser(model.RolePatient)), model.FinanceFilter{})
	assert.True(t, errors.Is(err, errors.KindForbidden))

	_, err = svc.Summary(ctx, repotest.ActorFor(prof), model.FinanceFilter{From: "2026-03-11", To: "2026-03-01"})
	assert.True(t, errors.Is(err, errors.KindBadRequest))
}

func TestMalformedDateIsEchoedVerbatim(t *testing.T) {
	store := repotest.NewStore()
	svc := NewService(store.Appointments, time.UTC)
	admin := repotest.ActorFor(store.NewUser(model.RoleAdmin))

	for _, filter := range []model.FinanceFilter{{From: "2026-%d-01"}, {To: "100%s"}} {
		_, err := svc.Summary(context.Background(), admin, filter)
		require.True(t, errors.Is(err, errors.KindBadRequest), "got %v", err)
		assert.NotContains(t, err.Error(), "%!")
		assert.Contains(t, err.Error(), filter.From+filter.To)
	}
}
