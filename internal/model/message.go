package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is a contact-form submission or a message between users.
// A nil RecipientID addresses the admin inbox.
type Message struct {
	Base
	SenderID    *uuid.UUID `db:"sender_id" json:"sender_id,omitempty"`
	RecipientID *uuid.UUID `db:"recipient_id" json:"recipient_id,omitempty"`
	Name        string     `db:"name" json:"name"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
}

type ContactRequest struct {
	Name    string `json:"name" binding:"required,max=120"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"max=40"`
	Subject string `json:"subject" binding:"required,max=200"`
	Body    string `json:"body" binding:"required,max=5000"`
}

type SendMessageRequest struct {
	RecipientID *uuid.UUID `json:"recipient_id"`
	Subject     string     `json:"subject" binding:"required,max=200"`
	Body        string     `json:"body" binding:"required,max=5000"`
}

type MessageFilter struct {
	RecipientID       uuid.UUID
	IncludeAdminInbox bool
	UnreadOnly        bool
	Pagination
}
