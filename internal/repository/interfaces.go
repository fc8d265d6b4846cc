package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/schedule"
)

// ConflictCheck inspects the professional's blocking appointments for the day being written
// and returns an error to abort the write.
type ConflictCheck func(sameDay []*model.Appointment) error

// AppointmentChange edits the current, locked appointment in place. An error aborts the write.
type AppointmentChange func(apt *model.Appointment) error

// SlotGuard names the day to lock for a changed appointment and the check to run against it.
type SlotGuard func(apt *model.Appointment) (day schedule.Interval, check ConflictCheck)

// PatientChange edits the current, locked patient in place. An error aborts the write.
type PatientChange func(patient *model.Patient) error

// OutboxHandler handles one claimed outbox event. A non-nil error marks the event failed.
type OutboxHandler func(ctx context.Context, event *model.OutboxEvent) error

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		List(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error)
		CountByRole(ctx context.Context, role model.Role) (int, error)
		TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, int, error)
	}

	AudioNoteRepository interface {
		Create(ctx context.Context, note *model.AudioNote) error
		Get(ctx context.Context, id uuid.UUID) (*model.AudioNote, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AudioNote, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	// AppointmentRepository serializes writes per professional and day: CreateChecked and
	// UpdateChecked hold a lock for the appointment's day while check runs and the row is
	// written, so two concurrent bookings cannot both pass the overlap check. Modify and
	// UpdateChecked apply change to the row as it is inside the transaction, never to an
	// earlier read.
	AppointmentRepository interface {
		CreateChecked(ctx context.Context, apt *model.Appointment, day schedule.Interval, check ConflictCheck) error
		UpdateChecked(ctx context.Context, id uuid.UUID, change AppointmentChange, guard SlotGuard) (*model.Appointment, error)
		Modify(ctx context.Context, id uuid.UUID, change AppointmentChange) (*model.Appointment, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		ListBlocking(ctx context.Context, professionalID uuid.UUID, day schedule.Interval) ([]*model.Appointment, error)
		// DeleteCancelled removes the appointment only while it is cancelled.
		DeleteCancelled(ctx context.Context, id uuid.UUID) error
	}

	StatusRequestRepository interface {
		Create(ctx context.Context, req *model.StatusRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.StatusRequest, error)
		GetPendingByPatient(ctx context.Context, patientID uuid.UUID) (*model.StatusRequest, error)
		List(ctx context.Context, filter model.StatusRequestFilter) ([]*model.StatusRequest, error)
		// ApplyDecision stores the reviewed request while the request is still pending and, when
		// change is non-nil, applies it to the locked patient in the same transaction. It
		// returns the patient as stored afterwards.
		ApplyDecision(ctx context.Context, req *model.StatusRequest, change PatientChange) (*model.Patient, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	PostRepository interface {
		Create(ctx context.Context, post *model.Post) error
		Get(ctx context.Context, id uuid.UUID) (*model.Post, error)
		GetBySlug(ctx context.Context, slug string) (*model.Post, error)
		Update(ctx context.Context, post *model.Post) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error)
		SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
	}

	ActivityRepository interface {
		Create(ctx context.Context, activity *model.Activity) error
		Get(ctx context.Context, id uuid.UUID) (*model.Activity, error)
		Update(ctx context.Context, activity *model.Activity) error
		List(ctx context.Context, filter model.ActivityFilter) ([]*model.Activity, error)
	}

	MessageRepository interface {
		Create(ctx context.Context, msg *model.Message) error
		Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
		List(ctx context.Context, filter model.MessageFilter) ([]*model.Message, int, error)
		CountUnread(ctx context.Context, filter model.MessageFilter) (int, error)
		MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	CarouselRepository interface {
		Create(ctx context.Context, img *model.CarouselImage) error
		Get(ctx context.Context, id uuid.UUID) (*model.CarouselImage, error)
		List(ctx context.Context) ([]*model.CarouselImage, error)
		NextPosition(ctx context.Context) (int, error)
		Reorder(ctx context.Context, ids []uuid.UUID) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ProcessPending claims up to limit pending events and records the handler's outcome
		// for each. It returns the number of events claimed.
		ProcessPending(ctx context.Context, limit int, handle OutboxHandler) (int, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// TokenStore remembers revoked token ids until the token would have expired anyway.
	TokenStore interface {
		Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}
)
