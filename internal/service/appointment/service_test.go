package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	"github.com/jwalitptl/institute-api/internal/schedule"
	"github.com/jwalitptl/institute-api/internal/service/event"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

type fixture struct {
	store        *repotest.Store
	svc          *Service
	metrics      *metrics.Domain
	admin        model.Actor
	professional *model.User
	patient      *model.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.NewStore()
	m := metrics.NewDomain(prometheus.NewRegistry(), "test")
	svc := NewService(store.Appointments, store.Patients, store.Users, event.NewService(store.Outbox), schedule.DefaultHours(), m)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }

	prof := store.NewUser(model.RoleProfessional)
	return &fixture{
		store:        store,
		svc:          svc,
		metrics:      m,
		admin:        repotest.ActorFor(store.NewUser(model.RoleAdmin)),
		professional: prof,
		patient:      store.NewPatient(prof.ID),
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func at(day, h, m int) time.Time {
	return time.Date(2026, 3, day, h, m, 0, 0, time.UTC)
}

func (f *fixture) book(t *testing.T, start, end time.Time) (*model.Appointment, error) {
	t.Helper()
	return f.svc.Create(context.Background(), repotest.ActorFor(f.professional), model.CreateAppointmentRequest{
		PatientID: f.patient.ID,
		StartTime: start,
		EndTime:   end,
	})
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)

	apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	assert.Equal(t, f.professional.ID, apt.ProfessionalID)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, model.PaymentStatusPending, apt.PaymentStatus)
	assert.Equal(t, f.patient.SessionPrice, apt.Price, "price defaults to the session price")
	assert.Equal(t, []string{model.EventAppointmentCreated}, f.store.Outbox.Types())
	assert.Equal(t, 1.0, counterValue(t, f.metrics.AppointmentsBooked))
}

func TestCreateAppointmentRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	_, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	_, err = f.book(t, at(10, 9, 30), at(10, 10, 30))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConflict))
	assert.Equal(t, 1.0, counterValue(t, f.metrics.BookingConflicts))

	_, err = f.book(t, at(10, 10, 0), at(10, 11, 0))
	assert.NoError(t, err, "adjacent appointments do not overlap")
}

func TestCancelledAppointmentFreesItsTime(t *testing.T) {
	f := newFixture(t)
	first, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), f.admin, first.ID, "patient asked")
	require.NoError(t, err)

	_, err = f.book(t, at(10, 9, 0), at(10, 10, 0))
	assert.NoError(t, err)
}

func TestOverlapIsPerProfessional(t *testing.T) {
	f := newFixture(t)
	_, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	other := f.store.NewUser(model.RoleProfessional)
	otherPatient := f.store.NewPatient(other.ID)
	_, err = f.svc.Create(context.Background(), repotest.ActorFor(other), model.CreateAppointmentRequest{
		PatientID: otherPatient.ID,
		StartTime: at(10, 9, 0),
		EndTime:   at(10, 10, 0),
	})
	assert.NoError(t, err)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"end before start", at(10, 10, 0), at(10, 9, 0)},
		{"zero length", at(10, 10, 0), at(10, 10, 0)},
		{"too short", at(10, 10, 0), at(10, 10, 10)},
		{"too long", at(10, 9, 0), at(10, 13, 30)},
		{"spans midnight", at(10, 23, 30), at(11, 0, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.book(t, tt.start, tt.end)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.KindBadRequest), err.Error())
		})
	}
}

func TestCreateAppointmentPatientChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := f.store.NewUser(model.RoleProfessional)
	foreign := f.store.NewPatient(other.ID)
	_, err := f.svc.Create(ctx, repotest.ActorFor(f.professional), model.CreateAppointmentRequest{
		PatientID: foreign.ID, StartTime: at(10, 9, 0), EndTime: at(10, 10, 0),
	})
	assert.True(t, errors.Is(err, errors.KindBadRequest), "patient of another professional")

	f.patient.Status = model.PatientStatusDischarged
	require.NoError(t, f.store.Patients.Update(ctx, f.patient))
	_, err = f.book(t, at(10, 9, 0), at(10, 10, 0))
	assert.True(t, errors.Is(err, errors.KindBadRequest), "discharged patient")

	_, err = f.svc.Create(ctx, f.admin, model.CreateAppointmentRequest{
		PatientID: f.patient.ID, StartTime: at(10, 9, 0), EndTime: at(10, 10, 0),
	})
	assert.True(t, errors.Is(err, errors.KindBadRequest), "admin must name the professional")
}

func TestConcurrentBookingsOnlyOneWins(t *testing.T) {
	f := newFixture(t)

	const n = 20
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.book(t, at(10, 14, 0), at(10, 15, 0))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, conflicts := 0, 0
	for err := range results {
		if err == nil {
			ok++
		} else if errors.Is(err, errors.KindConflict) {
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestRescheduleExcludesItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := repotest.ActorFor(f.professional)

	apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)
	_, err = f.book(t, at(10, 11, 0), at(10, 12, 0))
	require.NoError(t, err)

	end := at(10, 10, 30)
	updated, err := f.svc.Update(ctx, actor, apt.ID, model.UpdateAppointmentRequest{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, end, updated.EndTime)

	start, end := at(10, 11, 30), at(10, 12, 30)
	_, err = f.svc.Update(ctx, actor, apt.ID, model.UpdateAppointmentRequest{StartTime: &start, EndTime: &end})
	assert.True(t, errors.Is(err, errors.KindConflict))
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := repotest.ActorFor(f.professional)

	apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	apt, err = f.svc.UpdateStatus(ctx, actor, apt.ID, model.AppointmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)

	apt, err = f.svc.UpdateStatus(ctx, actor, apt.ID, model.AppointmentStatusCompleted)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, actor, apt.ID, model.AppointmentStatusScheduled)
	assert.True(t, errors.Is(err, errors.KindBadRequest), "completed is final")

	_, err = f.svc.Cancel(ctx, actor, apt.ID, "")
	assert.True(t, errors.Is(err, errors.KindBadRequest))
}

func TestCancelEmitsEvent(t *testing.T) {
	f := newFixture(t)
	apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), repotest.ActorFor(f.professional), apt.ID, "sick")
	require.NoError(t, err)

	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "sick", *cancelled.CancelReason)
	assert.Equal(t, []string{model.EventAppointmentCreated, model.EventAppointmentCancelled}, f.store.Outbox.Types())
}

func TestUpdatePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := repotest.ActorFor(f.professional)
	apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	paid, err := f.svc.UpdatePayment(ctx, actor, apt.ID, model.UpdatePaymentRequest{PaymentStatus: model.PaymentStatusPaid})
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, f.svc.now(), *paid.PaidAt)

	waived, err := f.svc.UpdatePayment(ctx, actor, apt.ID, model.UpdatePaymentRequest{PaymentStatus: model.PaymentStatusWaived})
	require.NoError(t, err)
	assert.Nil(t, waived.PaidAt)
}

func TestDeleteOnlyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	err = f.svc.Delete(ctx, f.admin, apt.ID)
	assert.True(t, errors.Is(err, errors.KindBadRequest))

	_, err = f.svc.Cancel(ctx, f.admin, apt.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.admin, apt.ID))

	_, err = f.svc.Get(ctx, f.admin, apt.ID)
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)
	_, err = f.book(t, at(10, 12, 30), at(10, 13, 0))
	require.NoError(t, err)
	cancelled, err := f.book(t, at(10, 15, 0), at(10, 16, 0))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.admin, cancelled.ID, "")
	require.NoError(t, err)

	avail, err := f.svc.Availability(ctx, f.professional.ID, "2026-03-10")
	require.NoError(t, err)

	var hours []int
	for _, s := range avail.Slots {
		hours = append(hours, s.Start.Hour())
	}
	assert.Equal(t, "2026-03-10", avail.Date)
	assert.Equal(t, []int{10, 11, 13, 14, 15, 16}, hours)
}

func TestAvailabilitySkipsPastSlots(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return at(10, 13, 15) }

	avail, err := f.svc.Availability(context.Background(), f.professional.ID, "2026-03-10")
	require.NoError(t, err)
	require.Len(t, avail.Slots, 3)
	assert.Equal(t, 14, avail.Slots[0].Start.Hour())
}

func TestAvailabilityErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Availability(ctx, f.professional.ID, "10/03/2026")
	assert.True(t, errors.Is(err, errors.KindBadRequest))

	_, err = f.svc.Availability(ctx, f.admin.UserID, "2026-03-10")
	assert.True(t, errors.Is(err, errors.KindNotFound))

	_, err = f.svc.Availability(ctx, uuid.New(), "2026-03-10")
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestListScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	require.NoError(t, err)

	other := f.store.NewUser(model.RoleProfessional)
	list, err := f.svc.List(ctx, repotest.ActorFor(other), model.AppointmentFilter{ProfessionalID: f.professional.ID})
	require.NoError(t, err)
	assert.Empty(t, list, "professionals only see their own agenda")

	patientUser := f.store.NewUser(model.RolePatient)
	f.patient.UserID = &patientUser.ID
	require.NoError(t, f.store.Patients.Update(ctx, f.patient))

	list, err = f.svc.List(ctx, repotest.ActorFor(patientUser), model.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	from, to := at(11, 0, 0), at(10, 0, 0)
	_, err = f.svc.List(ctx, f.admin, model.AppointmentFilter{From: &from, To: &to})
	assert.True(t, errors.Is(err, errors.KindBadRequest))
}

func TestEventFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.store.Outbox.CreateErr = errors.Internal(nil)

	_, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
	assert.NoError(t, err)
}

// interleavedAppointments runs between once, right after the first read returns.
type interleavedAppointments struct {
	repository.AppointmentRepository
	once    sync.Once
	between func()
}

func (r *interleavedAppointments) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := r.AppointmentRepository.Get(ctx, id)
	r.once.Do(r.between)
	return apt, err
}

func TestWritesApplyToCurrentRow(t *testing.T) {
	ctx := context.Background()

	t.Run("reschedule after a concurrent cancel", func(t *testing.T) {
		f := newFixture(t)
		apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
		require.NoError(t, err)

		repo := &interleavedAppointments{AppointmentRepository: f.store.Appointments, between: func() {
			_, err := f.svc.Cancel(ctx, f.admin, apt.ID, "patient called")
			require.NoError(t, err)
		}}
		racing := NewService(repo, f.store.Patients, f.store.Users, event.NewService(f.store.Outbox), schedule.DefaultHours(), f.metrics)
		racing.now = f.svc.now

		start, end := at(10, 11, 0), at(10, 12, 0)
		_, err = racing.Update(ctx, repotest.ActorFor(f.professional), apt.ID, model.UpdateAppointmentRequest{StartTime: &start, EndTime: &end})
		assert.True(t, errors.Is(err, errors.KindBadRequest), "a cancelled appointment cannot be rescheduled")

		stored, err := f.store.Appointments.Get(ctx, apt.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)
		assert.Equal(t, at(10, 9, 0), stored.StartTime)
	})

	t.Run("payment after a concurrent status change", func(t *testing.T) {
		f := newFixture(t)
		apt, err := f.book(t, at(10, 9, 0), at(10, 10, 0))
		require.NoError(t, err)

		repo := &interleavedAppointments{AppointmentRepository: f.store.Appointments, between: func() {
			_, err := f.svc.UpdateStatus(ctx, f.admin, apt.ID, model.AppointmentStatusConfirmed)
			require.NoError(t, err)
		}}
		racing := NewService(repo, f.store.Patients, f.store.Users, event.NewService(f.store.Outbox), schedule.DefaultHours(), f.metrics)
		racing.now = f.svc.now

		paid, err := racing.UpdatePayment(ctx, repotest.ActorFor(f.professional), apt.ID, model.UpdatePaymentRequest{PaymentStatus: model.PaymentStatusPaid})
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusConfirmed, paid.Status)
		assert.Equal(t, model.PaymentStatusPaid, paid.PaymentStatus)
	})
}
