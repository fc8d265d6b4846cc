// Package finance reports billed and collected amounts over appointments.
package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/institute-api/internal/model"
	"github.com/jwalitptl/institute-api/internal/repository"
	"github.com/jwalitptl/institute-api/internal/schedule"
	"github.com/jwalitptl/institute-api/pkg/errors"
)

type FinanceService interface {
	Summary(ctx context.Context, actor model.Actor, filter model.FinanceFilter) (*model.FinanceSummary, error)
}

type Service struct {
	appointmentRepo repository.AppointmentRepository
	location        *time.Location
}

func NewService(appointmentRepo repository.AppointmentRepository, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{appointmentRepo: appointmentRepo, location: location}
}

// Summary totals the appointments in [from, to] (both dates inclusive).
// Professionals only ever see their own figures.
func (s *Service) Summary(ctx context.Context, actor model.Actor, filter model.FinanceFilter) (*model.FinanceSummary, error) {
	query := model.AppointmentFilter{ProfessionalID: filter.ProfessionalID}
	switch {
	case actor.IsProfessional():
		query.ProfessionalID = actor.UserID
	case !actor.IsAdmin():
		return nil, errors.Forbidden("insufficient permissions")
	}

	if filter.From != "" {
		from, err := schedule.ParseDate(filter.From, s.location)
		if err != nil {
			return nil, errors.BadRequest("%s", err)
		}
		query.From = &from
	}
	if filter.To != "" {
		to, err := schedule.ParseDate(filter.To, s.location)
		if err != nil {
			return nil, errors.BadRequest("%s", err)
		}
		to = to.AddDate(0, 0, 1)
		query.To = &to
	}
	if query.From != nil && query.To != nil && !query.From.Before(*query.To) {
		return nil, errors.BadRequest("from must not be after to")
	}

	apts, err := s.appointmentRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return Summarize(apts, s.location), nil
}

// Summarize aggregates non-cancelled appointments, bucketed by month of start time in loc
// and by professional.
func Summarize(apts []*model.Appointment, loc *time.Location) *model.FinanceSummary {
	summary := &model.FinanceSummary{
		ByMonth:        []model.MonthTotals{},
		ByProfessional: []model.ProfessionalTotals{},
	}
	months := map[string]*model.Totals{}
	professionals := map[uuid.UUID]*model.Totals{}

	for _, a := range apts {
		if a.Status == model.AppointmentStatusCancelled {
			continue
		}
		month := a.StartTime.In(loc).Format("2006-01")
		if months[month] == nil {
			months[month] = &model.Totals{}
		}
		if professionals[a.ProfessionalID] == nil {
			professionals[a.ProfessionalID] = &model.Totals{}
		}
		add(&summary.Totals, a)
		add(months[month], a)
		add(professionals[a.ProfessionalID], a)
	}

	for month, t := range months {
		summary.ByMonth = append(summary.ByMonth, model.MonthTotals{Month: month, Totals: *t})
	}
	sort.Slice(summary.ByMonth, func(i, j int) bool { return summary.ByMonth[i].Month < summary.ByMonth[j].Month })

	for id, t := range professionals {
		summary.ByProfessional = append(summary.ByProfessional, model.ProfessionalTotals{ProfessionalID: id, Totals: *t})
	}
	sort.Slice(summary.ByProfessional, func(i, j int) bool {
		a, b := summary.ByProfessional[i], summary.ByProfessional[j]
		if a.Billed != b.Billed {
			return a.Billed > b.Billed
		}
		return a.ProfessionalID.String() < b.ProfessionalID.String()
	})

	return summary
}

func add(t *model.Totals, a *model.Appointment) {
	t.Appointments++
	t.Billed += a.Price
	switch a.PaymentStatus {
	case model.PaymentStatusPaid:
		t.Paid += a.Price
	case model.PaymentStatusWaived:
		t.Waived += a.Price
	default:
		t.Pending += a.Price
	}
}
