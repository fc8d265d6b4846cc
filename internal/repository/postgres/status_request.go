package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

const statusRequestColumns = `id, patient_id, professional_id, type, requested_frequency, reason, status,
	reviewer_id, review_note, reviewed_at, created_at, updated_at`

type statusRequestRepository struct {
	BaseRepository
}

func NewStatusRequestRepository(db *sqlx.DB) repository.StatusRequestRepository {
	return &statusRequestRepository{NewBaseRepository(db)}
}

func (r *statusRequestRepository) Create(ctx context.Context, req *model.StatusRequest) error {
	query := `
		INSERT INTO status_requests (` + statusRequestColumns + `)
		VALUES (
			:id, :patient_id, :professional_id, :type, :requested_frequency, :reason, :status,
			:reviewer_id, :review_note, :reviewed_at, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, req)
	if constraint, ok := uniqueConstraint(err); ok && constraint == "status_requests_one_pending" {
		return errors.Conflict("patient already has a pending status request")
	}
	return mapError(err, "status request")
}

func (r *statusRequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.StatusRequest, error) {
	var req model.StatusRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+statusRequestColumns+` FROM status_requests WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "status request")
	}
	return &req, nil
}

func (r *statusRequestRepository) GetPendingByPatient(ctx context.Context, patientID uuid.UUID) (*model.StatusRequest, error) {
	var req model.StatusRequest
	err := r.db.GetContext(ctx, &req,
		`SELECT `+statusRequestColumns+` FROM status_requests WHERE patient_id = $1 AND status = 'pending'`, patientID)
	if err != nil {
		return nil, mapError(err, "pending status request")
	}
	return &req, nil
}

func (r *statusRequestRepository) List(ctx context.Context, filter model.StatusRequestFilter) ([]*model.StatusRequest, error) {
	var w where
	if filter.PatientID != uuid.Nil {
		w.add("patient_id = ?", filter.PatientID)
	}
	if filter.ProfessionalID != uuid.Nil {
		w.add("professional_id = ?", filter.ProfessionalID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}

	query := r.db.Rebind(`SELECT ` + statusRequestColumns + ` FROM status_requests` + w.String() + ` ORDER BY created_at DESC`)
	var reqs []*model.StatusRequest
	if err := r.db.SelectContext(ctx, &reqs, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list status requests: %w", err)
	}
	return reqs, nil
}

func (r *statusRequestRepository) ApplyDecision(ctx context.Context, req *model.StatusRequest, change repository.PatientChange) (*model.Patient, error) {
	var patient model.Patient
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE status_requests SET
				status = :status, reviewer_id = :reviewer_id, review_note = :review_note,
				reviewed_at = :reviewed_at, updated_at = :updated_at
			WHERE id = :id AND status = 'pending'`
		res, err := tx.NamedExecContext(ctx, query, req)
		if err != nil {
			return mapError(err, "status request")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return errors.Conflict("status request has already been reviewed")
		}

		err = tx.GetContext(ctx, &patient,
			`SELECT `+patientColumns+` FROM patients WHERE id = $1 FOR UPDATE`, req.PatientID)
		if err != nil {
			return mapError(err, "patient")
		}
		if change == nil {
			return nil
		}
		if err := change(&patient); err != nil {
			return err
		}

		// Only the columns a status request governs.
		res, err = tx.NamedExecContext(ctx, `
			UPDATE patients SET
				status = :status, active = :active, frequency = :frequency, updated_at = :updated_at
			WHERE id = :id`, &patient)
		if err != nil {
			return mapError(err, "patient")
		}
		return expectAffected(res, "patient")
	})
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *statusRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM status_requests WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return mapError(err, "status request")
	}
	return expectAffected(res, "pending status request")
}
