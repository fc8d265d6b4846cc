package model

import (
	"time"

	"github.com/google/uuid"
)

type StatusRequestType string

const (
	StatusRequestDischarge       StatusRequestType = "discharge"
	StatusRequestActivation      StatusRequestType = "activation"
	StatusRequestFrequencyChange StatusRequestType = "frequency_change"
)

type StatusRequestState string

const (
	StatusRequestPending  StatusRequestState = "pending"
	StatusRequestApproved StatusRequestState = "approved"
	StatusRequestRejected StatusRequestState = "rejected"
)

// StatusRequest is a change to a patient awaiting admin review.
type StatusRequest struct {
	Base
	PatientID          uuid.UUID          `db:"patient_id" json:"patient_id"`
	ProfessionalID     uuid.UUID          `db:"professional_id" json:"professional_id"`
	Type               StatusRequestType  `db:"type" json:"type"`
	RequestedFrequency *Frequency         `db:"requested_frequency" json:"requested_frequency,omitempty"`
	Reason             string             `db:"reason" json:"reason"`
	Status             StatusRequestState `db:"status" json:"status"`
	ReviewerID         *uuid.UUID         `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewNote         string             `db:"review_note" json:"review_note,omitempty"`
	ReviewedAt         *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

type CreateStatusRequestRequest struct {
	PatientID          uuid.UUID         `json:"patient_id" binding:"required"`
	Type               StatusRequestType `json:"type" binding:"required,oneof=discharge activation frequency_change"`
	RequestedFrequency *Frequency        `json:"requested_frequency" binding:"omitempty,oneof=weekly biweekly monthly"`
	Reason             string            `json:"reason" binding:"required,max=2000"`
}

type ReviewStatusRequestRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

type StatusRequestFilter struct {
	PatientID      uuid.UUID          `form:"-"`
	ProfessionalID uuid.UUID          `form:"-"`
	Status         StatusRequestState `form:"status"`
}
