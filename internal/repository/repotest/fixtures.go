package repotest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/model"
)

// NewUser stores an active user with the given role.
func (s *Store) NewUser(role model.Role) *model.User {
	now := time.Now()
	id := uuid.New()
	u := &model.User{
		Base:   model.Base{ID: id, CreatedAt: now, UpdatedAt: now},
		Name:   fmt.Sprintf("%s %s", role, id.String()[:8]),
		Email:  fmt.Sprintf("%s-%s@example.com", role, id.String()[:8]),
		Role:   role,
		Active: true,
	}
	if err := s.Users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

// NewPatient stores an active weekly patient of the professional.
func (s *Store) NewPatient(professionalID uuid.UUID) *model.Patient {
	now := time.Now()
	p := &model.Patient{
		Base:           model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ProfessionalID: professionalID,
		FirstName:      "Ana",
		LastName:       "Souza",
		Email:          "ana@example.com",
		Frequency:      model.FrequencyWeekly,
		SessionPrice:   15000,
		Status:         model.PatientStatusActive,
		Active:         true,
	}
	if err := s.Patients.Create(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

// ActorFor returns the request actor of u.
func ActorFor(u *model.User) model.Actor {
	return model.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}
