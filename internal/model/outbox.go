package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Event types emitted by the services.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentCancelled = "appointment.cancelled"
	EventStatusRequestCreated = "status_request.created"
	EventStatusRequestDecided = "status_request.decided"
	EventMessageReceived      = "message.received"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// AppointmentEvent is the payload of appointment events.
type AppointmentEvent struct {
	AppointmentID  uuid.UUID `json:"appointment_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	PatientName    string    `json:"patient_name"`
	PatientEmail   string    `json:"patient_email,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Reason         string    `json:"reason,omitempty"`
}

// StatusRequestEvent is the payload of status request events.
type StatusRequestEvent struct {
	RequestID      uuid.UUID          `json:"request_id"`
	PatientID      uuid.UUID          `json:"patient_id"`
	PatientName    string             `json:"patient_name"`
	Type           StatusRequestType  `json:"type"`
	Status         StatusRequestState `json:"status"`
	RequesterEmail string             `json:"requester_email,omitempty"`
	ReviewNote     string             `json:"review_note,omitempty"`
}

// MessageEvent is the payload of message.received.
type MessageEvent struct {
	MessageID      uuid.UUID `json:"message_id"`
	FromName       string    `json:"from_name"`
	FromEmail      string    `json:"from_email"`
	Subject        string    `json:"subject"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
}
