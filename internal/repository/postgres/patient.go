package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
)

const patientColumns = `id, professional_id, user_id, first_name, last_name, email, phone, birth_date,
	frequency, session_price, status, notes, emergency_contact, active, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func (r *patientRepository) Create(ctx context.Context, p *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES (
			:id, :professional_id, :user_id, :first_name, :last_name, :email, :phone, :birth_date,
			:frequency, :session_price, :status, :notes, :emergency_contact, :active, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return mapError(err, "patient")
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var p model.Patient
	if err := r.db.GetContext(ctx, &p, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "patient")
	}
	return &p, nil
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	var p model.Patient
	if err := r.db.GetContext(ctx, &p, `SELECT `+patientColumns+` FROM patients WHERE user_id = $1`, userID); err != nil {
		return nil, mapError(err, "patient")
	}
	return &p, nil
}

func (r *patientRepository) Update(ctx context.Context, p *model.Patient) error {
	res, err := r.db.NamedExecContext(ctx, updatePatientQuery, p)
	if err != nil {
		return mapError(err, "patient")
	}
	return expectAffected(res, "patient")
}

const updatePatientQuery = `
	UPDATE patients SET
		professional_id = :professional_id, user_id = :user_id, first_name = :first_name,
		last_name = :last_name, email = :email, phone = :phone, birth_date = :birth_date,
		frequency = :frequency, session_price = :session_price, status = :status, notes = :notes,
		emergency_contact = :emergency_contact, active = :active, updated_at = :updated_at
	WHERE id = :id`

func (r *patientRepository) List(ctx context.Context, filter model.PatientFilter) ([]*model.Patient, int, error) {
	var w where
	if !filter.IncludeDeleted {
		w.add("active")
	}
	if filter.ProfessionalID != uuid.Nil {
		w.add("professional_id = ?", filter.ProfessionalID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		w.add("(first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM patients`+w.String()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query := r.db.Rebind(`SELECT ` + patientColumns + ` FROM patients` + w.String() +
		` ORDER BY first_name, last_name LIMIT ? OFFSET ?`)
	args := append(w.args, filter.Limit(), filter.Offset())

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

type audioNoteRepository struct {
	BaseRepository
}

func NewAudioNoteRepository(db *sqlx.DB) repository.AudioNoteRepository {
	return &audioNoteRepository{NewBaseRepository(db)}
}

func (r *audioNoteRepository) Create(ctx context.Context, n *model.AudioNote) error {
	query := `
		INSERT INTO audio_notes (id, patient_id, uploaded_by, path, url, filename, mime_type, size_bytes, description, created_at)
		VALUES (:id, :patient_id, :uploaded_by, :path, :url, :filename, :mime_type, :size_bytes, :description, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, n)
	return mapError(err, "audio note")
}

func (r *audioNoteRepository) Get(ctx context.Context, id uuid.UUID) (*model.AudioNote, error) {
	var n model.AudioNote
	if err := r.db.GetContext(ctx, &n, `SELECT * FROM audio_notes WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "audio note")
	}
	return &n, nil
}

func (r *audioNoteRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.AudioNote, error) {
	var notes []*model.AudioNote
	err := r.db.SelectContext(ctx, &notes,
		`SELECT * FROM audio_notes WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio notes: %w", err)
	}
	return notes, nil
}

func (r *audioNoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audio_notes WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "audio note")
	}
	return expectAffected(res, "audio note")
}
