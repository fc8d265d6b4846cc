package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository/repotest"
	"github.com/jwalitptl/institute-api/pkg/messaging"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published []messaging.Message
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failFirst {
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

func pendingEvent(eventType string) *model.OutboxEvent {
	payload, _ := json.Marshal(map[string]string{"k": "v"})
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
}

func newProcessor(t *testing.T, repo *repotest.OutboxRepo, broker *fakeBroker, attempts int) *OutboxProcessor {
	t.Helper()
	p, err := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
	}, zerolog.Nop(), metrics.NewOutbox(nil, "test"))
	require.NoError(t, err)
	return p
}

func TestProcessBatchPublishesPendingEvents(t *testing.T) {
	repo := &repotest.OutboxRepo{}
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventMessageReceived)))
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventAppointmentCreated)))
	broker := &fakeBroker{}

	n, err := newProcessor(t, repo, broker, 3).ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, broker.published, 2)
	assert.Equal(t, model.EventMessageReceived, broker.published[0].Type)
	for _, e := range repo.Events {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
	}

	n, err = newProcessor(t, repo, broker, 3).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "processed events are not claimed again")
}

func TestProcessBatchRetriesBeforeSucceeding(t *testing.T) {
	repo := &repotest.OutboxRepo{}
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventStatusRequestDecided)))
	broker := &fakeBroker{failFirst: 2}

	_, err := newProcessor(t, repo, broker, 3).ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, broker.calls)
	assert.Equal(t, model.OutboxStatusProcessed, repo.Events[0].Status)
}

func TestProcessBatchMarksEventFailedAfterRetries(t *testing.T) {
	repo := &repotest.OutboxRepo{}
	require.NoError(t, repo.Create(context.Background(), pendingEvent(model.EventMessageReceived)))
	broker := &fakeBroker{failFirst: 10}

	_, err := newProcessor(t, repo, broker, 2).ProcessBatch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, broker.calls)
	assert.Equal(t, model.OutboxStatusFailed, repo.Events[0].Status)
	require.NotNil(t, repo.Events[0].ErrorMessage)
	assert.Contains(t, *repo.Events[0].ErrorMessage, "broker unavailable")
}

func TestNewOutboxProcessorRejectsInvalidConfig(t *testing.T) {
	_, err := NewOutboxProcessor(&repotest.OutboxRepo{}, &fakeBroker{}, OutboxProcessorConfig{},
		zerolog.Nop(), metrics.NewOutbox(nil, "test"))
	assert.Error(t, err)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestOutboxCleanupDeletesOldProcessedEvents(t *testing.T) {
	repo := &repotest.OutboxRepo{}
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	repo.Events = []*model.OutboxEvent{
		{ID: uuid.New(), Status: model.OutboxStatusProcessed, ProcessedAt: &old},
		{ID: uuid.New(), Status: model.OutboxStatusProcessed, ProcessedAt: &recent},
		{ID: uuid.New(), Status: model.OutboxStatusFailed},
	}

	NewOutboxCleanupWorker(repo, 24*time.Hour, time.Hour, zerolog.Nop()).Cleanup(context.Background(), time.Now())

	assert.Len(t, repo.Events, 2)
}
