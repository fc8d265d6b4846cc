package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/schedule"
	"github.com/jwalitptl/institute-api/internal/service/event"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

const (
	MinDuration = 15 * time.Minute
	MaxDuration = 4 * time.Hour
)

type AppointmentService interface {
	Create(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*model.Appointment, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, actor model.Actor, filter model.AppointmentFilter) ([]*model.Appointment, error)
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateAppointmentRequest) (*model.Appointment, error)
	Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error)
	UpdatePayment(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdatePaymentRequest) (*model.Appointment, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
	Availability(ctx context.Context, professionalID uuid.UUID, date string) (*model.Availability, error)
}

type Service struct {
	appointmentRepo repository.AppointmentRepository
	patientRepo     repository.PatientRepository
	userRepo        repository.UserRepository
	events          event.Emitter
	hours           schedule.Hours
	metrics         *metrics.Domain
	now             func() time.Time
}

func NewService(
	appointmentRepo repository.AppointmentRepository,
	patientRepo repository.PatientRepository,
	userRepo repository.UserRepository,
	events event.Emitter,
	hours schedule.Hours,
	m *metrics.Domain,
) *Service {
	return &Service{
		appointmentRepo: appointmentRepo,
		patientRepo:     patientRepo,
		userRepo:        userRepo,
		events:          events,
		hours:           hours,
		metrics:         m,
		now:             time.Now,
	}
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req model.CreateAppointmentRequest) (*model.Appointment, error) {
	professionalID := req.ProfessionalID
	switch {
	case actor.IsProfessional():
		if professionalID != uuid.Nil && professionalID != actor.UserID {
			return nil, errors.Forbidden("professionals can only book their own agenda")
		}
		professionalID = actor.UserID
	case actor.IsAdmin():
		if professionalID == uuid.Nil {
			return nil, errors.BadRequest("professional_id is required")
		}
	default:
		return nil, errors.Forbidden("insufficient permissions")
	}

	candidate := schedule.Interval{Start: req.StartTime, End: req.EndTime}
	if err := s.validateInterval(candidate); err != nil {
		return nil, err
	}

	patient, err := s.bookablePatient(ctx, req.PatientID, professionalID)
	if err != nil {
		return nil, err
	}

	price := patient.SessionPrice
	if req.Price != nil {
		price = *req.Price
	}

	now := s.now()
	apt := &model.Appointment{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		PatientID:      patient.ID,
		ProfessionalID: professionalID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Status:         model.AppointmentStatusScheduled,
		Notes:          req.Notes,
		Price:          price,
		PaymentStatus:  model.PaymentStatusPending,
	}

	if err := s.appointmentRepo.CreateChecked(ctx, apt, s.dayOf(candidate), s.conflictCheck(candidate)); err != nil {
		return nil, s.writeError(err, "create")
	}

	s.metrics.AppointmentsBooked.Inc()
	s.emit(ctx, model.EventAppointmentCreated, apt, patient, "")
	return apt, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, apt); err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, actor model.Actor, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	switch {
	case actor.IsProfessional():
		filter.ProfessionalID = actor.UserID
	case actor.IsPatient():
		patient, err := s.patientRepo.GetByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, errors.KindNotFound) {
				return []*model.Appointment{}, nil
			}
			return nil, err
		}
		filter.PatientID = patient.ID
	}

	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, errors.BadRequest("from must be before to")
	}

	apts, err := s.appointmentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	if apts == nil {
		apts = []*model.Appointment{}
	}
	return apts, nil
}

// Update reschedules an open appointment or edits its notes and price.
func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if _, err := s.managed(ctx, actor, id); err != nil {
		return nil, err
	}

	reschedule := req.StartTime != nil || req.EndTime != nil
	change := func(apt *model.Appointment) error {
		if req.Notes != nil {
			apt.Notes = *req.Notes
		}
		if req.Price != nil {
			apt.Price = *req.Price
		}
		apt.UpdatedAt = s.now()
		if !reschedule {
			return nil
		}

		if !apt.Blocks() || apt.Status == model.AppointmentStatusCompleted || apt.Status == model.AppointmentStatusNoShow {
			return errors.BadRequest("a %s appointment cannot be rescheduled", apt.Status)
		}
		if req.StartTime != nil {
			apt.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			apt.EndTime = *req.EndTime
		}
		return s.validateInterval(apt.Interval())
	}

	if !reschedule {
		apt, err := s.appointmentRepo.Modify(ctx, id, change)
		if err != nil {
			return nil, s.writeError(err, "update")
		}
		return apt, nil
	}

	apt, err := s.appointmentRepo.UpdateChecked(ctx, id, change, s.guard)
	if err != nil {
		return nil, s.writeError(err, "update")
	}
	return apt, nil
}

func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Appointment, error) {
	current, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, current); err != nil {
		return nil, err
	}

	apt, err := s.appointmentRepo.Modify(ctx, id, func(apt *model.Appointment) error {
		if !apt.Status.CanTransition(model.AppointmentStatusCancelled) {
			return errors.BadRequest("a %s appointment cannot be cancelled", apt.Status)
		}
		apt.Status = model.AppointmentStatusCancelled
		if reason != "" {
			apt.CancelReason = &reason
		}
		apt.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.writeError(err, "cancel")
	}

	s.metrics.AppointmentsCanceled.Inc()
	if patient, err := s.patientRepo.Get(ctx, apt.PatientID); err == nil {
		s.emit(ctx, model.EventAppointmentCancelled, apt, patient, reason)
	} else {
		log.Warn().Err(err).Str("appointment_id", apt.ID.String()).Msg("failed to load patient for cancellation event")
	}
	return apt, nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	if status == model.AppointmentStatusCancelled {
		return s.Cancel(ctx, actor, id, "")
	}

	if _, err := s.managed(ctx, actor, id); err != nil {
		return nil, err
	}
	apt, err := s.appointmentRepo.Modify(ctx, id, func(apt *model.Appointment) error {
		if apt.Status == status {
			return nil
		}
		if !apt.Status.CanTransition(status) {
			return errors.BadRequest("cannot change appointment status from %s to %s", apt.Status, status)
		}
		apt.Status = status
		apt.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.writeError(err, "update status of")
	}
	return apt, nil
}

func (s *Service) UpdatePayment(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdatePaymentRequest) (*model.Appointment, error) {
	if _, err := s.managed(ctx, actor, id); err != nil {
		return nil, err
	}
	apt, err := s.appointmentRepo.Modify(ctx, id, func(apt *model.Appointment) error {
		if apt.Status == model.AppointmentStatusCancelled {
			return errors.BadRequest("cannot record payment for a cancelled appointment")
		}
		apt.PaymentStatus = req.PaymentStatus
		switch req.PaymentStatus {
		case model.PaymentStatusPaid:
			paidAt := s.now()
			if req.PaidAt != nil {
				paidAt = *req.PaidAt
			}
			apt.PaidAt = &paidAt
		default:
			apt.PaidAt = nil
		}
		apt.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, s.writeError(err, "record payment of")
	}
	return apt, nil
}

// Delete removes a cancelled appointment. Other appointments must be cancelled first.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	apt, err := s.managed(ctx, actor, id)
	if err != nil {
		return err
	}
	if apt.Status != model.AppointmentStatusCancelled {
		return errors.BadRequest("only cancelled appointments can be deleted")
	}
	if err := s.appointmentRepo.DeleteCancelled(ctx, id); err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return errors.BadRequest("only cancelled appointments can be deleted")
		}
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// Availability lists the professional's free slots on date (YYYY-MM-DD). Slots that
// already started are not offered.
func (s *Service) Availability(ctx context.Context, professionalID uuid.UUID, date string) (*model.Availability, error) {
	day, err := schedule.ParseDate(date, s.hours.Location)
	if err != nil {
		return nil, errors.BadRequest("%s", err)
	}

	professional, err := s.userRepo.Get(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if professional.Role != model.RoleProfessional || !professional.Active {
		return nil, errors.NotFound("professional")
	}

	busyApts, err := s.appointmentRepo.ListBlocking(ctx, professionalID, s.dayOf(schedule.Interval{Start: day, End: day}))
	if err != nil {
		return nil, fmt.Errorf("failed to load appointments: %w", err)
	}

	now := s.now()
	free := make([]schedule.Interval, 0)
	for _, slot := range schedule.Free(s.hours.Slots(day), intervals(busyApts)) {
		if slot.Start.After(now) {
			free = append(free, slot)
		}
	}

	return &model.Availability{
		ProfessionalID: professionalID,
		Date:           day.Format("2006-01-02"),
		Slots:          free,
	}, nil
}

func (s *Service) validateInterval(i schedule.Interval) error {
	if !i.Valid() {
		return errors.BadRequest("end_time must be after start_time")
	}
	if d := i.Duration(); d < MinDuration || d > MaxDuration {
		return errors.BadRequest("appointments must last between %s and %s", MinDuration, MaxDuration)
	}
	if !s.hours.SameDay(i) {
		return errors.BadRequest("appointments must start and end on the same day")
	}
	return nil
}

func (s *Service) dayOf(i schedule.Interval) schedule.Interval {
	start := s.hours.Day(i.Start)
	return schedule.Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// guard locks the day of the changed appointment and checks it against the rest of that day.
func (s *Service) guard(apt *model.Appointment) (schedule.Interval, repository.ConflictCheck) {
	candidate := apt.Interval()
	return s.dayOf(candidate), s.conflictCheck(candidate)
}

func (s *Service) conflictCheck(candidate schedule.Interval) repository.ConflictCheck {
	return func(sameDay []*model.Appointment) error {
		for _, other := range sameDay {
			if schedule.Overlaps(candidate, other.Interval()) {
				local := other.StartTime.In(s.hours.Location)
				return errors.Conflict("the professional already has an appointment at %s", local.Format("15:04"))
			}
		}
		return nil
	}
}

func (s *Service) writeError(err error, op string) error {
	if errors.Is(err, errors.KindConflict) {
		s.metrics.BookingConflicts.Inc()
		return err
	}
	if errors.Is(err, errors.KindNotFound) || errors.Is(err, errors.KindBadRequest) {
		return err
	}
	return fmt.Errorf("failed to %s appointment: %w", op, err)
}

func (s *Service) bookablePatient(ctx context.Context, patientID, professionalID uuid.UUID) (*model.Patient, error) {
	patient, err := s.patientRepo.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return nil, errors.BadRequest("patient does not exist")
		}
		return nil, err
	}
	if !patient.Active || patient.Status != model.PatientStatusActive {
		return nil, errors.BadRequest("patient is not active")
	}
	if patient.ProfessionalID != professionalID {
		return nil, errors.BadRequest("patient is not assigned to this professional")
	}
	return patient, nil
}

// managed loads an appointment that the actor may change: admins any, professionals their own.
func (s *Service) managed(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin():
		return apt, nil
	case actor.IsProfessional() && apt.ProfessionalID == actor.UserID:
		return apt, nil
	case actor.IsPatient():
		if err := s.authorizeRead(ctx, actor, apt); err != nil {
			return nil, err
		}
		return nil, errors.Forbidden("insufficient permissions")
	}
	return nil, errors.NotFound("appointment")
}

func (s *Service) authorizeRead(ctx context.Context, actor model.Actor, apt *model.Appointment) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsProfessional():
		if apt.ProfessionalID == actor.UserID {
			return nil
		}
	case actor.IsPatient():
		patient, err := s.patientRepo.Get(ctx, apt.PatientID)
		if err != nil && !errors.Is(err, errors.KindNotFound) {
			return err
		}
		if err == nil && patient.VisibleTo(actor) {
			return nil
		}
	}
	return errors.NotFound("appointment")
}

func (s *Service) emit(ctx context.Context, eventType string, apt *model.Appointment, patient *model.Patient, reason string) {
	payload := model.AppointmentEvent{
		AppointmentID:  apt.ID,
		PatientID:      patient.ID,
		ProfessionalID: apt.ProfessionalID,
		PatientName:    patient.FullName(),
		PatientEmail:   patient.Email,
		StartTime:      apt.StartTime,
		EndTime:        apt.EndTime,
		Reason:         reason,
	}
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Str("appointment_id", apt.ID.String()).Msg("failed to emit event")
	}
}

func intervals(apts []*model.Appointment) []schedule.Interval {
	out := make([]schedule.Interval, 0, len(apts))
	for _, a := range apts {
		out = append(out, a.Interval())
	}
	return out
}
