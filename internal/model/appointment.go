package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/schedule"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusConfirmed, AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusNoShow},
}

// CanTransition reports whether an appointment may move from s to next.
// Completed, cancelled and no-show appointments are final.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusWaived  PaymentStatus = "waived"
)

type Appointment struct {
	Base
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	ProfessionalID uuid.UUID         `db:"professional_id" json:"professional_id"`
	StartTime      time.Time         `db:"start_time" json:"start_time"`
	EndTime        time.Time         `db:"end_time" json:"end_time"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
	Price          int64             `db:"price" json:"price"`
	PaymentStatus  PaymentStatus     `db:"payment_status" json:"payment_status"`
	PaidAt         *time.Time        `db:"paid_at" json:"paid_at,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

func (a *Appointment) Interval() schedule.Interval {
	return schedule.Interval{Start: a.StartTime, End: a.EndTime}
}

// Blocks reports whether the appointment occupies its time range.
func (a *Appointment) Blocks() bool {
	return a.Status != AppointmentStatusCancelled
}

type CreateAppointmentRequest struct {
	PatientID      uuid.UUID `json:"patient_id" binding:"required"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	StartTime      time.Time `json:"start_time" binding:"required"`
	EndTime        time.Time `json:"end_time" binding:"required"`
	Notes          string    `json:"notes" binding:"max=4000"`
	Price          *int64    `json:"price" binding:"omitempty,gte=0"`
}

type UpdateAppointmentRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Notes     *string    `json:"notes" binding:"omitempty,max=4000"`
	Price     *int64     `json:"price" binding:"omitempty,gte=0"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,oneof=scheduled confirmed completed cancelled no_show"`
}

type UpdatePaymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status" binding:"required,oneof=pending paid waived"`
	PaidAt        *time.Time    `json:"paid_at"`
}

type AppointmentFilter struct {
	ProfessionalID uuid.UUID         `form:"-"`
	PatientID      uuid.UUID         `form:"-"`
	Status         AppointmentStatus `form:"status"`
	From           *time.Time        `form:"-"`
	To             *time.Time        `form:"-"`
}

// Availability lists the free slots of one professional on one day.
type Availability struct {
	ProfessionalID uuid.UUID           `json:"professional_id"`
	Date           string              `json:"date"`
	Slots          []schedule.Interval `json:"slots"`
}
