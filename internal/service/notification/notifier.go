// Package notification turns published domain events into emails.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/institute-api/internal/email"
	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/pkg/messaging"
	"github.com/jwalitptl/institute-api/pkg/metrics"
)

// Mail is one email derived from an event.
type Mail struct {
	To      []string
	Subject string
	Body    string
}

type Config struct {
	AdminInbox string
	Location   *time.Location
}

// Notifier consumes the events channel and sends emails through a circuit breaker, so an
// unreachable SMTP server fails fast instead of stalling the consumer.
type Notifier struct {
	broker  messaging.Broker
	sender  email.Sender
	breaker *gobreaker.CircuitBreaker
	config  Config
	logger  zerolog.Logger
	metrics *metrics.Outbox
}

func NewNotifier(broker messaging.Broker, sender email.Sender, config Config, logger zerolog.Logger, m *metrics.Outbox) *Notifier {
	if config.Location == nil {
		config.Location = time.UTC
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &Notifier{
		broker:  broker,
		sender:  sender,
		breaker: breaker,
		config:  config,
		logger:  logger,
		metrics: m,
	}
}

// Run blocks until ctx is done or the subscription ends.
func (n *Notifier) Run(ctx context.Context) error {
	messages, err := n.broker.Subscribe(ctx, messaging.EventsChannel)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.logger.Info().Str("channel", messaging.EventsChannel).Msg("notifier started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			var msg messaging.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				n.logger.Error().Err(err).Msg("failed to decode event")
				continue
			}
			if err := n.Handle(ctx, msg); err != nil {
				n.logger.Error().Err(err).Str("event_id", msg.ID).Str("event_type", msg.Type).Msg("failed to send notification")
			}
		}
	}
}

// Handle sends the email for one event. Events without a recipient are skipped.
func (n *Notifier) Handle(ctx context.Context, msg messaging.Message) error {
	mail, err := n.Compose(msg)
	if err != nil {
		n.metrics.NotificationsSent.WithLabelValues(msg.Type, "invalid").Inc()
		return err
	}
	if mail == nil {
		n.metrics.NotificationsSent.WithLabelValues(msg.Type, "skipped").Inc()
		return nil
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		return nil, n.sender.Send(ctx, mail.To, mail.Subject, mail.Body)
	})
	if err != nil {
		n.metrics.NotificationsSent.WithLabelValues(msg.Type, "failed").Inc()
		return err
	}

	n.metrics.NotificationsSent.WithLabelValues(msg.Type, "sent").Inc()
	return nil
}

// Compose builds the email for an event, or returns nil when nobody should be notified.
func (n *Notifier) Compose(msg messaging.Message) (*Mail, error) {
	switch msg.Type {
	case model.EventAppointmentCreated, model.EventAppointmentCancelled:
		var e model.AppointmentEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
		return n.appointmentMail(msg.Type, e), nil

	case model.EventStatusRequestCreated:
		var e model.StatusRequestEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
		if n.config.AdminInbox == "" {
			return nil, nil
		}
		return &Mail{
			To:      []string{n.config.AdminInbox},
			Subject: fmt.Sprintf("New %s request for %s", humanType(e.Type), e.PatientName),
			Body: fmt.Sprintf("A %s request for %s is waiting for review.\nRequested by: %s\n",
				humanType(e.Type), e.PatientName, e.RequesterEmail),
		}, nil

	case model.EventStatusRequestDecided:
		var e model.StatusRequestEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
		if e.RequesterEmail == "" {
			return nil, nil
		}
		body := fmt.Sprintf("Your %s request for %s was %s.\n", humanType(e.Type), e.PatientName, e.Status)
		if e.ReviewNote != "" {
			body += "\nNote from the reviewer:\n" + e.ReviewNote + "\n"
		}
		return &Mail{
			To:      []string{e.RequesterEmail},
			Subject: fmt.Sprintf("Request %s: %s", e.Status, e.PatientName),
			Body:    body,
		}, nil

	case model.EventMessageReceived:
		var e model.MessageEvent
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
		to := e.RecipientEmail
		if to == "" {
			to = n.config.AdminInbox
		}
		if to == "" {
			return nil, nil
		}
		return &Mail{
			To:      []string{to},
			Subject: "New message: " + e.Subject,
			Body:    fmt.Sprintf("%s <%s> sent you a message. Sign in to read it.\n", e.FromName, e.FromEmail),
		}, nil
	}
	return nil, nil
}

func (n *Notifier) appointmentMail(eventType string, e model.AppointmentEvent) *Mail {
	if e.PatientEmail == "" {
		return nil
	}
	start := e.StartTime.In(n.config.Location)
	when := start.Format("Monday, 02 Jan 2006 at 15:04")

	if eventType == model.EventAppointmentCancelled {
		body := fmt.Sprintf("Hello %s,\n\nYour appointment on %s has been cancelled.\n", e.PatientName, when)
		if e.Reason != "" {
			body += "Reason: " + e.Reason + "\n"
		}
		return &Mail{To: []string{e.PatientEmail}, Subject: "Appointment cancelled", Body: body}
	}

	return &Mail{
		To:      []string{e.PatientEmail},
		Subject: "Appointment scheduled",
		Body: fmt.Sprintf("Hello %s,\n\nYour appointment is scheduled for %s (%d minutes).\n",
			e.PatientName, when, int(e.EndTime.Sub(e.StartTime).Minutes())),
	}
}

func humanType(t model.StatusRequestType) string {
	switch t {
	case model.StatusRequestFrequencyChange:
		return "frequency change"
	default:
		return string(t)
	}
}
