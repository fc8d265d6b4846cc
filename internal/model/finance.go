package model

import "github.com/google/uuid"

type FinanceFilter struct {
	ProfessionalID uuid.UUID `form:"-"`
	From           string    `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To             string    `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// Totals aggregates amounts in cents over a set of appointments.
type Totals struct {
	Appointments int   `json:"appointments"`
	Billed       int64 `json:"billed"`
	Paid         int64 `json:"paid"`
	Pending      int64 `json:"pending"`
	Waived       int64 `json:"waived"`
}

type MonthTotals struct {
	Month string `json:"month"`
	Totals
}

type ProfessionalTotals struct {
	ProfessionalID uuid.UUID `json:"professional_id"`
	Totals
}

type FinanceSummary struct {
	Totals         Totals               `json:"totals"`
	ByMonth        []MonthTotals        `json:"by_month"`
	ByProfessional []ProfessionalTotals `json:"by_professional"`
}
