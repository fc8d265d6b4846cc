package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
)

const messageColumns = `id, sender_id, recipient_id, name, email, phone, subject, body, read_at,
	created_at, updated_at`

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{NewBaseRepository(db)}
}

func (r *messageRepository) Create(ctx context.Context, m *model.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (
			:id, :sender_id, :recipient_id, :name, :email, :phone, :subject, :body, :read_at,
			:created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, m)
	return mapError(err, "message")
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var m model.Message
	if err := r.db.GetContext(ctx, &m, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "message")
	}
	return &m, nil
}

func inboxWhere(filter model.MessageFilter) where {
	var w where
	if filter.IncludeAdminInbox {
		w.add("(recipient_id = ? OR recipient_id IS NULL)", filter.RecipientID)
	} else {
		w.add("recipient_id = ?", filter.RecipientID)
	}
	if filter.UnreadOnly {
		w.add("read_at IS NULL")
	}
	return w
}

func (r *messageRepository) List(ctx context.Context, filter model.MessageFilter) ([]*model.Message, int, error) {
	w := inboxWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM messages`+w.String()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages` + w.String() +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	args := append(w.args, filter.Limit(), filter.Offset())

	var msgs []*model.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, total, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, filter model.MessageFilter) (int, error) {
	filter.UnreadOnly = true
	w := inboxWhere(filter)

	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM messages`+w.String()), w.args...); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read_at = COALESCE(read_at, $1), updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return mapError(err, "message")
	}
	return expectAffected(res, "message")
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "message")
	}
	return expectAffected(res, "message")
}
