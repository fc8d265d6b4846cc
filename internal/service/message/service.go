package message

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

type MessageService interface {
	Contact(ctx context.Context, req model.ContactRequest) (*model.Message, error)
	Send(ctx context.Context, actor model.Actor, req model.SendMessageRequest) (*model.Message, error)
	Inbox(ctx context.Context, actor model.Actor, unreadOnly bool, p model.Pagination) (model.Page[*model.Message], error)
	UnreadCount(ctx context.Context, actor model.Actor) (int, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error)
	MarkRead(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error)
	Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error
}

type Service struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	events      event.Emitter
	metrics     *metrics.Domain
	now         func() time.Time
}

func NewService(messageRepo repository.MessageRepository, userRepo repository.UserRepository, events event.Emitter, m *metrics.Domain) *Service {
	return &Service{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		events:      events,
		metrics:     m,
		now:         time.Now,
	}
}

// Contact stores a public contact form submission in the admin inbox.
func (s *Service) Contact(ctx context.Context, req model.ContactRequest) (*model.Message, error) {
	now := s.now()
	msg := &model.Message{
		Base:    model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:   req.Phone,
		Subject: strings.TrimSpace(req.Subject),
		Body:    req.Body,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	s.metrics.MessagesReceived.WithLabelValues("contact").Inc()
	s.emit(ctx, msg, "")
	return msg, nil
}

// Send delivers a message from a logged-in user. Without a recipient it goes to the admin inbox.
func (s *Service) Send(ctx context.Context, actor model.Actor, req model.SendMessageRequest) (*model.Message, error) {
	sender, err := s.userRepo.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	var recipientEmail string
	if req.RecipientID != nil {
		if *req.RecipientID == actor.UserID {
			return nil, errors.BadRequest("you cannot send a message to yourself")
		}
		recipient, err := s.userRepo.Get(ctx, *req.RecipientID)
		if err != nil {
			if errors.Is(err, errors.KindNotFound) {
				return nil, errors.BadRequest("recipient does not exist")
			}
			return nil, err
		}
		if !recipient.Active {
			return nil, errors.BadRequest("recipient account is disabled")
		}
		recipientEmail = recipient.Email
	}

	now := s.now()
	msg := &model.Message{
		Base:        model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		SenderID:    &sender.ID,
		RecipientID: req.RecipientID,
		Name:        sender.Name,
		Email:       sender.Email,
		Phone:       sender.Phone,
		Subject:     strings.TrimSpace(req.Subject),
		Body:        req.Body,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	s.metrics.MessagesReceived.WithLabelValues("user").Inc()
	s.emit(ctx, msg, recipientEmail)
	return msg, nil
}

func (s *Service) Inbox(ctx context.Context, actor model.Actor, unreadOnly bool, p model.Pagination) (model.Page[*model.Message], error) {
	filter := inboxFilter(actor)
	filter.UnreadOnly = unreadOnly
	filter.Pagination = p

	msgs, total, err := s.messageRepo.List(ctx, filter)
	if err != nil {
		return model.Page[*model.Message]{}, fmt.Errorf("failed to list messages: %w", err)
	}
	return model.NewPage(msgs, total, p), nil
}

func (s *Service) UnreadCount(ctx context.Context, actor model.Actor) (int, error) {
	n, err := s.messageRepo.CountUnread(ctx, inboxFilter(actor))
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error) {
	msg, err := s.messageRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(actor, msg) {
		return nil, errors.NotFound("message")
	}
	return msg, nil
}

func (s *Service) MarkRead(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error) {
	msg, err := s.received(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if msg.ReadAt != nil {
		return msg, nil
	}

	now := s.now()
	if err := s.messageRepo.MarkRead(ctx, id, now); err != nil {
		return nil, fmt.Errorf("failed to mark message read: %w", err)
	}
	msg.ReadAt = &now
	return msg, nil
}

// Delete removes a message from the caller's inbox.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if _, err := s.received(ctx, actor, id); err != nil {
		return err
	}
	if err := s.messageRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// received loads a message addressed to the actor's inbox.
func (s *Service) received(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Message, error) {
	msg, err := s.messageRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inInbox(actor, msg) {
		return nil, errors.NotFound("message")
	}
	return msg, nil
}

func inboxFilter(actor model.Actor) model.MessageFilter {
	return model.MessageFilter{RecipientID: actor.UserID, IncludeAdminInbox: actor.IsAdmin()}
}

func inInbox(actor model.Actor, msg *model.Message) bool {
	if msg.RecipientID == nil {
		return actor.IsAdmin()
	}
	return *msg.RecipientID == actor.UserID
}

func canRead(actor model.Actor, msg *model.Message) bool {
	return inInbox(actor, msg) || (msg.SenderID != nil && *msg.SenderID == actor.UserID)
}

func (s *Service) emit(ctx context.Context, msg *model.Message, recipientEmail string) {
	payload := model.MessageEvent{
		MessageID:      msg.ID,
		FromName:       msg.Name,
		FromEmail:      msg.Email,
		Subject:        msg.Subject,
		RecipientEmail: recipientEmail,
	}
	if err := s.events.Emit(ctx, model.EventMessageReceived, payload); err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("failed to emit event")
	}
}
