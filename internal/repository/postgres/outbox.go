package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		string(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ProcessPending locks a batch with SKIP LOCKED so concurrent workers never claim the same
// event, and records every outcome before committing.
func (r *outboxRepository) ProcessPending(ctx context.Context, limit int, handle repository.OutboxHandler) (int, error) {
	var claimed int
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT id, event_type, payload, status, error_message, retry_count, created_at, processed_at
			FROM outbox_events
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED`
		var events []*model.OutboxEvent
		if err := tx.SelectContext(ctx, &events, query, limit); err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		claimed = len(events)

		for _, event := range events {
			if err := handle(ctx, event); err != nil {
				msg := err.Error()
				_, err := tx.ExecContext(ctx, `
					UPDATE outbox_events
					SET status = 'failed', error_message = $1, retry_count = retry_count + 1
					WHERE id = $2`, msg, event.ID)
				if err != nil {
					return fmt.Errorf("failed to mark event failed: %w", err)
				}
				continue
			}
			_, err := tx.ExecContext(ctx, `
				UPDATE outbox_events
				SET status = 'processed', error_message = NULL, processed_at = NOW()
				WHERE id = $1`, event.ID)
			if err != nil {
				return fmt.Errorf("failed to mark event processed: %w", err)
			}
		}
		return nil
	})
	return claimed, err
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
