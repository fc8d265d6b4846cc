package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/schedule"
)

const appointmentColumns = `id, patient_id, professional_id, start_time, end_time, status, notes,
	price, payment_status, paid_at, cancel_reason, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

// lockDay takes a transaction-scoped advisory lock on the professional's calendar day.
func lockDay(ctx context.Context, tx *sqlx.Tx, professionalID uuid.UUID, day schedule.Interval) error {
	key := professionalID.String() + "|" + day.Start.Format("2006-01-02")
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock schedule: %w", err)
	}
	return nil
}

func listBlocking(ctx context.Context, q sqlx.QueryerContext, professionalID uuid.UUID, day schedule.Interval, exclude uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE professional_id = $1
		AND status <> 'cancelled'
		AND start_time < $3 AND end_time > $2
		AND id <> $4
		ORDER BY start_time`
	var apts []*model.Appointment
	if err := sqlx.SelectContext(ctx, q, &apts, query, professionalID, day.Start, day.End, exclude); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return apts, nil
}

func (r *appointmentRepository) CreateChecked(ctx context.Context, apt *model.Appointment, day schedule.Interval, check repository.ConflictCheck) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockDay(ctx, tx, apt.ProfessionalID, day); err != nil {
			return err
		}
		existing, err := listBlocking(ctx, tx, apt.ProfessionalID, day, apt.ID)
		if err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}

		query := `
			INSERT INTO appointments (` + appointmentColumns + `)
			VALUES (
				:id, :patient_id, :professional_id, :start_time, :end_time, :status, :notes,
				:price, :payment_status, :paid_at, :cancel_reason, :created_at, :updated_at
			)`
		_, err = tx.NamedExecContext(ctx, query, apt)
		return mapError(err, "appointment")
	})
}

// lockAppointment reads the row FOR UPDATE so later writers wait for this transaction.
func lockAppointment(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	err := tx.GetContext(ctx, &apt, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapError(err, "appointment")
	}
	return &apt, nil
}

func (r *appointmentRepository) UpdateChecked(ctx context.Context, id uuid.UUID, change repository.AppointmentChange, guard repository.SlotGuard) (*model.Appointment, error) {
	var apt *model.Appointment
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if apt, err = lockAppointment(ctx, tx, id); err != nil {
			return err
		}
		if err := change(apt); err != nil {
			return err
		}

		day, check := guard(apt)
		if err := lockDay(ctx, tx, apt.ProfessionalID, day); err != nil {
			return err
		}
		existing, err := listBlocking(ctx, tx, apt.ProfessionalID, day, apt.ID)
		if err != nil {
			return err
		}
		if err := check(existing); err != nil {
			return err
		}
		return updateAppointment(ctx, tx, apt)
	})
	if err != nil {
		return nil, err
	}
	return apt, nil
}

func (r *appointmentRepository) Modify(ctx context.Context, id uuid.UUID, change repository.AppointmentChange) (*model.Appointment, error) {
	var apt *model.Appointment
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if apt, err = lockAppointment(ctx, tx, id); err != nil {
			return err
		}
		if err := change(apt); err != nil {
			return err
		}
		return updateAppointment(ctx, tx, apt)
	})
	if err != nil {
		return nil, err
	}
	return apt, nil
}

// updateAppointment writes the mutable columns. The patient and professional never change.
func updateAppointment(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	query := `
		UPDATE appointments SET
			start_time = :start_time, end_time = :end_time, status = :status, notes = :notes,
			price = :price, payment_status = :payment_status, paid_at = :paid_at,
			cancel_reason = :cancel_reason, updated_at = :updated_at
		WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, apt)
	if err != nil {
		return mapError(err, "appointment")
	}
	return expectAffected(res, "appointment")
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var apt model.Appointment
	if err := r.db.GetContext(ctx, &apt, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "appointment")
	}
	return &apt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	var w where
	if filter.ProfessionalID != uuid.Nil {
		w.add("professional_id = ?", filter.ProfessionalID)
	}
	if filter.PatientID != uuid.Nil {
		w.add("patient_id = ?", filter.PatientID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.From != nil {
		w.add("start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		w.add("start_time < ?", *filter.To)
	}

	query := r.db.Rebind(`SELECT ` + appointmentColumns + ` FROM appointments` + w.String() + ` ORDER BY start_time`)
	var apts []*model.Appointment
	if err := r.db.SelectContext(ctx, &apts, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return apts, nil
}

func (r *appointmentRepository) ListBlocking(ctx context.Context, professionalID uuid.UUID, day schedule.Interval) ([]*model.Appointment, error) {
	return listBlocking(ctx, r.db, professionalID, day, uuid.Nil)
}

func (r *appointmentRepository) DeleteCancelled(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1 AND status = 'cancelled'`, id)
	if err != nil {
		return mapError(err, "appointment")
	}
	return expectAffected(res, "cancelled appointment")
}
