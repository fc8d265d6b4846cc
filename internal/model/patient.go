package model

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

type PatientStatus string

const (
	PatientStatusActive     PatientStatus = "active"
	PatientStatusDischarged PatientStatus = "discharged"
	PatientStatusInactive   PatientStatus = "inactive"
)

type Patient struct {
	Base
	ProfessionalID   uuid.UUID     `db:"professional_id" json:"professional_id"`
	UserID           *uuid.UUID    `db:"user_id" json:"user_id,omitempty"`
	FirstName        string        `db:"first_name" json:"first_name"`
	LastName         string        `db:"last_name" json:"last_name"`
	Email            string        `db:"email" json:"email,omitempty"`
	Phone            string        `db:"phone" json:"phone,omitempty"`
	BirthDate        *time.Time    `db:"birth_date" json:"birth_date,omitempty"`
	Frequency        Frequency     `db:"frequency" json:"frequency"`
	SessionPrice     int64         `db:"session_price" json:"session_price"`
	Status           PatientStatus `db:"status" json:"status"`
	Notes            string        `db:"notes" json:"notes,omitempty"`
	EmergencyContact string        `db:"emergency_contact" json:"emergency_contact,omitempty"`
	Active           bool          `db:"active" json:"active"`
}

func (p *Patient) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// VisibleTo reports whether the actor may read the patient record: admins see everyone,
// professionals their own patients, patient users the record linked to their login.
func (p *Patient) VisibleTo(a Actor) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleProfessional:
		return p.ProfessionalID == a.UserID
	case RolePatient:
		return p.UserID != nil && *p.UserID == a.UserID
	}
	return false
}

// ManagedBy reports whether the actor may act on the patient's clinical data.
func (p *Patient) ManagedBy(a Actor) bool {
	return a.IsAdmin() || (a.IsProfessional() && p.ProfessionalID == a.UserID)
}

type CreatePatientRequest struct {
	ProfessionalID   uuid.UUID  `json:"professional_id" binding:"required"`
	UserID           *uuid.UUID `json:"user_id"`
	FirstName        string     `json:"first_name" binding:"required,max=80"`
	LastName         string     `json:"last_name" binding:"max=80"`
	Email            string     `json:"email" binding:"omitempty,email"`
	Phone            string     `json:"phone" binding:"max=40"`
	BirthDate        string     `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Frequency        Frequency  `json:"frequency" binding:"omitempty,oneof=weekly biweekly monthly"`
	SessionPrice     int64      `json:"session_price" binding:"gte=0"`
	Notes            string     `json:"notes" binding:"max=10000"`
	EmergencyContact string     `json:"emergency_contact" binding:"max=200"`
}

type UpdatePatientRequest struct {
	ProfessionalID   *uuid.UUID     `json:"professional_id"`
	UserID           *uuid.UUID     `json:"user_id"`
	FirstName        *string        `json:"first_name" binding:"omitempty,max=80"`
	LastName         *string        `json:"last_name" binding:"omitempty,max=80"`
	Email            *string        `json:"email" binding:"omitempty,email"`
	Phone            *string        `json:"phone" binding:"omitempty,max=40"`
	BirthDate        *string        `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Frequency        *Frequency     `json:"frequency" binding:"omitempty,oneof=weekly biweekly monthly"`
	SessionPrice     *int64         `json:"session_price" binding:"omitempty,gte=0"`
	Status           *PatientStatus `json:"status" binding:"omitempty,oneof=active discharged inactive"`
	Notes            *string        `json:"notes" binding:"omitempty,max=10000"`
	EmergencyContact *string        `json:"emergency_contact" binding:"omitempty,max=200"`
}

type PatientFilter struct {
	ProfessionalID uuid.UUID     `form:"-"`
	Status         PatientStatus `form:"status"`
	Search         string        `form:"search"`
	IncludeDeleted bool          `form:"-"`
	Pagination
}

// AudioNote is a recorded session note attached to a patient.
type AudioNote struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	UploadedBy  uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	Path        string    `db:"path" json:"-"`
	URL         string    `db:"url" json:"url"`
	Filename    string    `db:"filename" json:"filename"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
