package statusrequest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/service/event"
	"github.com/jwalitptl/institute-api/pkg/errors"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

type StatusRequestService interface {
	Create(ctx context.Context, actor model.Actor, req model.CreateStatusRequestRequest) (*model.StatusRequest, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.StatusRequest, error)
	List(ctx context.Context, actor model.Actor, filter model.StatusRequestFilter) ([]*model.StatusRequest, error)
	Approve(ctx context.Context, actor model.Actor, id uuid.UUID, note string) (*model.StatusRequest, error)
	Reject(ctx context.Context, actor model.Actor, id uuid.UUID, note string) (*model.StatusRequest, error)
	Withdraw(ctx context.Context, actor model.Actor, id uuid.UUID) error
}

type Service struct {
	requestRepo repository.StatusRequestRepository
	patientRepo repository.PatientRepository
	userRepo    repository.UserRepository
	events      event.Emitter
	metrics     *metrics.Domain
	now         func() time.Time
}

func NewService(
	requestRepo repository.StatusRequestRepository,
	patientRepo repository.PatientRepository,
	userRepo repository.UserRepository,
	events event.Emitter,
	m *metrics.Domain,
) *Service {
	return &Service{
		requestRepo: requestRepo,
		patientRepo: patientRepo,
		userRepo:    userRepo,
		events:      events,
		metrics:     m,
		now:         time.Now,
	}
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req model.CreateStatusRequestRequest) (*model.StatusRequest, error) {
	patient, err := s.patientRepo.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !patient.ManagedBy(actor) {
		return nil, errors.NotFound("patient")
	}

	if err := validateChange(patient, req); err != nil {
		return nil, err
	}

	if _, err := s.requestRepo.GetPendingByPatient(ctx, patient.ID); err == nil {
		return nil, errors.Conflict("patient already has a pending status request")
	} else if !errors.Is(err, errors.KindNotFound) {
		return nil, err
	}

	now := s.now()
	request := &model.StatusRequest{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		PatientID:      patient.ID,
		ProfessionalID: actor.UserID,
		Type:           req.Type,
		Reason:         strings.TrimSpace(req.Reason),
		Status:         model.StatusRequestPending,
	}
	if req.Type == model.StatusRequestFrequencyChange {
		request.RequestedFrequency = req.RequestedFrequency
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		if errors.Is(err, errors.KindConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	s.metrics.StatusRequests.WithLabelValues(string(request.Type), "created").Inc()
	s.emit(ctx, model.EventStatusRequestCreated, request, patient)
	return request, nil
}

// validateChange checks the request makes sense for the patient's current state.
func validateChange(patient *model.Patient, req model.CreateStatusRequestRequest) error {
	switch req.Type {
	case model.StatusRequestDischarge:
		if patient.Status != model.PatientStatusActive {
			return errors.BadRequest("only active patients can be discharged")
		}
	case model.StatusRequestActivation:
		if patient.Status == model.PatientStatusActive && patient.Active {
			return errors.BadRequest("patient is already active")
		}
	case model.StatusRequestFrequencyChange:
		if req.RequestedFrequency == nil || !req.RequestedFrequency.Valid() {
			return errors.BadRequest("requested_frequency is required for a frequency change")
		}
		if *req.RequestedFrequency == patient.Frequency {
			return errors.BadRequest("patient already has %s frequency", patient.Frequency)
		}
	default:
		return errors.BadRequest("unknown request type %q", req.Type)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.StatusRequest, error) {
	request, err := s.requestRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && request.ProfessionalID != actor.UserID {
		return nil, errors.NotFound("status request")
	}
	return request, nil
}

func (s *Service) List(ctx context.Context, actor model.Actor, filter model.StatusRequestFilter) ([]*model.StatusRequest, error) {
	switch {
	case actor.IsProfessional():
		filter.ProfessionalID = actor.UserID
	case !actor.IsAdmin():
		return nil, errors.Forbidden("insufficient permissions")
	}

	requests, err := s.requestRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list status requests: %w", err)
	}
	if requests == nil {
		requests = []*model.StatusRequest{}
	}
	return requests, nil
}

// Approve applies the requested change to the patient together with the decision.
func (s *Service) Approve(ctx context.Context, actor model.Actor, id uuid.UUID, note string) (*model.StatusRequest, error) {
	return s.decide(ctx, actor, id, model.StatusRequestApproved, note)
}

func (s *Service) Reject(ctx context.Context, actor model.Actor, id uuid.UUID, note string) (*model.StatusRequest, error) {
	return s.decide(ctx, actor, id, model.StatusRequestRejected, note)
}

func (s *Service) decide(ctx context.Context, actor model.Actor, id uuid.UUID, outcome model.StatusRequestState, note string) (*model.StatusRequest, error) {
	if !actor.IsAdmin() {
		return nil, errors.Forbidden("only administrators can review status requests")
	}

	request, err := s.requestRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != model.StatusRequestPending {
		return nil, errors.Conflict("status request has already been reviewed")
	}

	now := s.now()
	request.Status = outcome
	request.ReviewerID = &actor.UserID
	request.ReviewNote = strings.TrimSpace(note)
	request.ReviewedAt = &now
	request.UpdatedAt = now

	var change repository.PatientChange
	if outcome == model.StatusRequestApproved {
		change = func(patient *model.Patient) error {
			return applyChange(patient, request, now)
		}
	}

	patient, err := s.requestRepo.ApplyDecision(ctx, request, change)
	if err != nil {
		if errors.Is(err, errors.KindConflict) || errors.Is(err, errors.KindNotFound) || errors.Is(err, errors.KindBadRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}

	s.metrics.StatusRequests.WithLabelValues(string(request.Type), string(outcome)).Inc()
	s.emit(ctx, model.EventStatusRequestDecided, request, patient)
	return request, nil
}

// applyChange re-checks the request against the patient as currently stored and applies it.
func applyChange(patient *model.Patient, request *model.StatusRequest, now time.Time) error {
	switch request.Type {
	case model.StatusRequestDischarge:
		if patient.Status != model.PatientStatusActive {
			return errors.Conflict("patient is no longer active and cannot be discharged")
		}
		patient.Status = model.PatientStatusDischarged
	case model.StatusRequestActivation:
		if patient.Status == model.PatientStatusActive && patient.Active {
			return errors.Conflict("patient is already active")
		}
		patient.Status = model.PatientStatusActive
		patient.Active = true
	case model.StatusRequestFrequencyChange:
		if request.RequestedFrequency == nil {
			return errors.BadRequest("status request has no requested frequency")
		}
		if *request.RequestedFrequency == patient.Frequency {
			return errors.Conflict("patient already has %s frequency", patient.Frequency)
		}
		patient.Frequency = *request.RequestedFrequency
	}
	patient.UpdatedAt = now
	return nil
}

// Withdraw deletes a pending request. Only its requester may withdraw it.
func (s *Service) Withdraw(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	request, err := s.requestRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if request.ProfessionalID != actor.UserID {
		if actor.IsAdmin() {
			return errors.Forbidden("only the requester can withdraw a status request")
		}
		return errors.NotFound("status request")
	}
	if request.Status != model.StatusRequestPending {
		return errors.Conflict("status request has already been reviewed")
	}

	if err := s.requestRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.StatusRequests.WithLabelValues(string(request.Type), "withdrawn").Inc()
	return nil
}

func (s *Service) emit(ctx context.Context, eventType string, request *model.StatusRequest, patient *model.Patient) {
	payload := model.StatusRequestEvent{
		RequestID:   request.ID,
		PatientID:   patient.ID,
		PatientName: patient.FullName(),
		Type:        request.Type,
		Status:      request.Status,
		ReviewNote:  request.ReviewNote,
	}
	if requester, err := s.userRepo.Get(ctx, request.ProfessionalID); err == nil {
		payload.RequesterEmail = requester.Email
	}
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Str("request_id", request.ID.String()).Msg("failed to emit event")
	}
}
