package patient

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/storage"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

type PatientService interface {
	Create(ctx context.Context, req model.CreatePatientRequest) (*model.Patient, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, error)
	Mine(ctx context.Context, actor model.Actor) (*model.Patient, error)
	List(ctx context.Context, actor model.Actor, filter model.PatientFilter) (model.Page[*model.Patient], error)
	Update(ctx context.Context, id uuid.UUID, req model.UpdatePatientRequest) (*model.Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AddAudioNote(ctx context.Context, actor model.Actor, patientID uuid.UUID, upload AudioUpload) (*model.AudioNote, error)
	ListAudioNotes(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]*model.AudioNote, error)
	OpenAudioNote(ctx context.Context, actor model.Actor, patientID, noteID uuid.UUID) (*model.AudioNote, io.ReadSeekCloser, error)
	DeleteAudioNote(ctx context.Context, actor model.Actor, patientID, noteID uuid.UUID) error
}

// audioNoteURL is where the authenticated API streams a recording.
const audioNoteURL = "/api/v1/patients/%s/audio-notes/%s"

// NotesCipher protects the clinical notes column.
type NotesCipher interface {
	Seal(plain string) (string, error)
	Open(stored string) (string, error)
}

type plainNotes struct{}

func (plainNotes) Seal(s string) (string, error) { return s, nil }
func (plainNotes) Open(s string) (string, error) { return s, nil }

// AudioUpload is one uploaded recording.
type AudioUpload struct {
	Filename    string
	Description string
	Content     io.Reader
}

type Service struct {
	patientRepo repository.PatientRepository
	userRepo    repository.UserRepository
	noteRepo    repository.AudioNoteRepository
	store       storage.Store
	notes       NotesCipher
	metrics     *metrics.Domain
	now         func() time.Time
}

// NewService creates the patient service. A nil cipher stores notes in clear.
func NewService(
	patientRepo repository.PatientRepository,
	userRepo repository.UserRepository,
	noteRepo repository.AudioNoteRepository,
	store storage.Store,
	cipher NotesCipher,
	m *metrics.Domain,
) *Service {
	if cipher == nil {
		cipher = plainNotes{}
	}
	return &Service{
		patientRepo: patientRepo,
		userRepo:    userRepo,
		noteRepo:    noteRepo,
		store:       store,
		notes:       cipher,
		metrics:     m,
		now:         time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req model.CreatePatientRequest) (*model.Patient, error) {
	if err := s.checkProfessional(ctx, req.ProfessionalID); err != nil {
		return nil, err
	}
	if req.UserID != nil {
		if err := s.checkPatientLogin(ctx, *req.UserID, uuid.Nil); err != nil {
			return nil, err
		}
	}

	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}

	frequency := req.Frequency
	if frequency == "" {
		frequency = model.FrequencyWeekly
	}

	now := s.now()
	patient := &model.Patient{
		Base:             model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ProfessionalID:   req.ProfessionalID,
		UserID:           req.UserID,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:            req.Phone,
		BirthDate:        birthDate,
		Frequency:        frequency,
		SessionPrice:     req.SessionPrice,
		Status:           model.PatientStatusActive,
		Notes:            req.Notes,
		EmergencyContact: req.EmergencyContact,
		Active:           true,
	}

	if err := s.save(ctx, patient, s.patientRepo.Create); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.patientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !patient.VisibleTo(actor) {
		return nil, errors.NotFound("patient")
	}
	return s.present(actor, patient)
}

// Mine returns the patient record linked to a patient login.
func (s *Service) Mine(ctx context.Context, actor model.Actor) (*model.Patient, error) {
	patient, err := s.patientRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.present(actor, patient)
}

func (s *Service) List(ctx context.Context, actor model.Actor, filter model.PatientFilter) (model.Page[*model.Patient], error) {
	switch {
	case actor.IsProfessional():
		filter.ProfessionalID = actor.UserID
	case !actor.IsAdmin():
		return model.Page[*model.Patient]{}, errors.Forbidden("insufficient permissions")
	}

	patients, total, err := s.patientRepo.List(ctx, filter)
	if err != nil {
		return model.Page[*model.Patient]{}, fmt.Errorf("failed to list patients: %w", err)
	}
	for _, p := range patients {
		if _, err := s.present(actor, p); err != nil {
			return model.Page[*model.Patient]{}, err
		}
	}
	return model.NewPage(patients, total, filter.Pagination), nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.patientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patient.Notes, err = s.notes.Open(patient.Notes); err != nil {
		return nil, fmt.Errorf("failed to decrypt notes: %w", err)
	}

	if req.ProfessionalID != nil && *req.ProfessionalID != patient.ProfessionalID {
		if err := s.checkProfessional(ctx, *req.ProfessionalID); err != nil {
			return nil, err
		}
		patient.ProfessionalID = *req.ProfessionalID
	}
	if req.UserID != nil {
		if err := s.checkPatientLogin(ctx, *req.UserID, patient.ID); err != nil {
			return nil, err
		}
		patient.UserID = req.UserID
	}
	if req.FirstName != nil {
		patient.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		patient.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		patient.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}
	if req.BirthDate != nil {
		if patient.BirthDate, err = parseBirthDate(*req.BirthDate); err != nil {
			return nil, err
		}
	}
	if req.Frequency != nil {
		patient.Frequency = *req.Frequency
	}
	if req.SessionPrice != nil {
		patient.SessionPrice = *req.SessionPrice
	}
	if req.Status != nil {
		patient.Status = *req.Status
		if patient.Status == model.PatientStatusActive {
			patient.Active = true
		}
	}
	if req.Notes != nil {
		patient.Notes = *req.Notes
	}
	if req.EmergencyContact != nil {
		patient.EmergencyContact = *req.EmergencyContact
	}
	patient.UpdatedAt = s.now()

	if err := s.save(ctx, patient, s.patientRepo.Update); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return patient, nil
}

// Delete soft-deletes the patient.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	patient, err := s.patientRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	patient.Active = false
	patient.Status = model.PatientStatusInactive
	patient.UpdatedAt = s.now()
	if err := s.patientRepo.Update(ctx, patient); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return nil
}

func (s *Service) AddAudioNote(ctx context.Context, actor model.Actor, patientID uuid.UUID, upload AudioUpload) (*model.AudioNote, error) {
	if _, err := s.managed(ctx, actor, patientID); err != nil {
		return nil, err
	}

	file, err := s.store.Save(ctx, storage.Audio, patientID.String(), upload.Content)
	if err != nil {
		return nil, err
	}

	noteID := uuid.New()
	note := &model.AudioNote{
		ID:          noteID,
		PatientID:   patientID,
		UploadedBy:  actor.UserID,
		Path:        file.Path,
		URL:         fmt.Sprintf(audioNoteURL, patientID, noteID),
		Filename:    upload.Filename,
		MimeType:    file.MimeType,
		SizeBytes:   file.Size,
		Description: upload.Description,
		CreatedAt:   s.now(),
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		if delErr := s.store.Delete(ctx, file.Path); delErr != nil {
			log.Warn().Err(delErr).Str("path", file.Path).Msg("failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to create audio note: %w", err)
	}

	s.metrics.UploadsStored.WithLabelValues(storage.Audio.Name).Inc()
	return note, nil
}

func (s *Service) ListAudioNotes(ctx context.Context, actor model.Actor, patientID uuid.UUID) ([]*model.AudioNote, error) {
	if _, err := s.managed(ctx, actor, patientID); err != nil {
		return nil, err
	}
	return s.noteRepo.ListByPatient(ctx, patientID)
}

// OpenAudioNote returns the recording for playback. The caller closes the reader.
func (s *Service) OpenAudioNote(ctx context.Context, actor model.Actor, patientID, noteID uuid.UUID) (*model.AudioNote, io.ReadSeekCloser, error) {
	note, err := s.audioNote(ctx, actor, patientID, noteID)
	if err != nil {
		return nil, nil, err
	}
	content, err := s.store.Open(ctx, note.Path)
	if err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return nil, nil, errors.NotFound("audio note")
		}
		return nil, nil, err
	}
	return note, content, nil
}

func (s *Service) DeleteAudioNote(ctx context.Context, actor model.Actor, patientID, noteID uuid.UUID) error {
	note, err := s.audioNote(ctx, actor, patientID, noteID)
	if err != nil {
		return err
	}

	if err := s.noteRepo.Delete(ctx, noteID); err != nil {
		return fmt.Errorf("failed to delete audio note: %w", err)
	}
	if err := s.store.Delete(ctx, note.Path); err != nil {
		log.Warn().Err(err).Str("path", note.Path).Msg("failed to remove audio file")
	}
	return nil
}

// audioNote loads a note of a patient the actor manages.
func (s *Service) audioNote(ctx context.Context, actor model.Actor, patientID, noteID uuid.UUID) (*model.AudioNote, error) {
	if _, err := s.managed(ctx, actor, patientID); err != nil {
		return nil, err
	}
	note, err := s.noteRepo.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.PatientID != patientID {
		return nil, errors.NotFound("audio note")
	}
	return note, nil
}

// managed loads a patient the actor may act on clinically.
func (s *Service) managed(ctx context.Context, actor model.Actor, patientID uuid.UUID) (*model.Patient, error) {
	patient, err := s.patientRepo.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.ManagedBy(actor) {
		if patient.VisibleTo(actor) {
			return nil, errors.Forbidden("insufficient permissions")
		}
		return nil, errors.NotFound("patient")
	}
	return patient, nil
}

// save seals the notes for storage and restores the clear text on the caller's copy.
func (s *Service) save(ctx context.Context, patient *model.Patient, write func(context.Context, *model.Patient) error) error {
	plain := patient.Notes
	sealed, err := s.notes.Seal(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt notes: %w", err)
	}
	patient.Notes = sealed
	err = write(ctx, patient)
	patient.Notes = plain
	return err
}

// present decrypts notes in place and hides them from patient logins.
func (s *Service) present(actor model.Actor, patient *model.Patient) (*model.Patient, error) {
	if actor.IsPatient() {
		patient.Notes = ""
		return patient, nil
	}
	notes, err := s.notes.Open(patient.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt notes: %w", err)
	}
	patient.Notes = notes
	return patient, nil
}

func (s *Service) checkProfessional(ctx context.Context, id uuid.UUID) error {
	user, err := s.userRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return errors.BadRequest("professional_id must reference an active professional")
		}
		return err
	}
	if user.Role != model.RoleProfessional || !user.Active {
		return errors.BadRequest("professional_id must reference an active professional")
	}
	return nil
}

// checkPatientLogin verifies userID is a patient login not linked to another record.
func (s *Service) checkPatientLogin(ctx context.Context, userID, patientID uuid.UUID) error {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.KindNotFound) {
			return errors.BadRequest("user_id must reference a patient account")
		}
		return err
	}
	if user.Role != model.RolePatient {
		return errors.BadRequest("user_id must reference a patient account")
	}

	linked, err := s.patientRepo.GetByUserID(ctx, userID)
	switch {
	case err == nil && linked.ID != patientID:
		return errors.Conflict("user is already linked to another patient")
	case err != nil && !errors.Is(err, errors.KindNotFound):
		return err
	}
	return nil
}

func parseBirthDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, errors.BadRequest("birth_date must be YYYY-MM-DD")
	}
	return &d, nil
}
