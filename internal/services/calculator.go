package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"realestate/internal/domain"
	"realestate/internal/metrics"
	apperrors "realestate/pkg/errors"
)

const (
	defaultAnnualRate = 9.5
	defaultTermMonths = 360
)

// FinancingInput are the simulation parameters. Rate and term fall back to 9.5% a year over 360 months.
type FinancingInput struct {
	PropertyValue float64  `json:"property_value"`
	DownPayment   float64  `json:"down_payment"`
	InterestRate  *float64 `json:"interest_rate"`
	TermMonths    *int     `json:"term_months"`
}

// FinancingResult is a fixed-rate amortization summary
type FinancingResult struct {
	PropertyValue  float64 `json:"property_value"`
	DownPayment    float64 `json:"down_payment"`
	LoanAmount     float64 `json:"loan_amount"`
	InterestRate   float64 `json:"interest_rate"`
	TermMonths     int     `json:"term_months"`
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalPaid      float64 `json:"total_paid"`
	TotalInterest  float64 `json:"total_interest"`
	TotalAmount    float64 `json:"total_amount"`
}

// FinancingLeadInput submits a simulation as a lead
type FinancingLeadInput struct {
	FinancingInput
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Email      *string `json:"email"`
	PropertyID *string `json:"property_id"`
}

// Simulate computes the monthly payment M = L·r(1+r)^n / ((1+r)^n − 1)
// with L = value − down and r the monthly rate. A zero rate gives M = L/n.
func Simulate(in FinancingInput) (*FinancingResult, error) {
	rate := defaultAnnualRate
	if in.InterestRate != nil {
		rate = *in.InterestRate
	}
	months := defaultTermMonths
	if in.TermMonths != nil {
		months = *in.TermMonths
	}

	switch {
	case in.PropertyValue <= 0:
		return nil, apperrors.Validation("property_value must be greater than zero")
	case in.DownPayment < 0:
		return nil, apperrors.Validation("down_payment must not be negative")
	case in.DownPayment >= in.PropertyValue:
		return nil, apperrors.Validation("down_payment must be less than property_value")
	case months <= 0:
		return nil, apperrors.Validation("term_months must be greater than zero")
	case rate < 0:
		return nil, apperrors.Validation("interest_rate must not be negative")
	}

	loan := in.PropertyValue - in.DownPayment
	n := float64(months)
	r := rate / 12 / 100

	var monthly float64
	if r == 0 {
		monthly = loan / n
	} else {
		growth := math.Pow(1+r, n)
		monthly = loan * (r * growth) / (growth - 1)
	}
	totalPaid := monthly * n

	return &FinancingResult{
		PropertyValue:  in.PropertyValue,
		DownPayment:    in.DownPayment,
		LoanAmount:     loan,
		InterestRate:   rate,
		TermMonths:     months,
		MonthlyPayment: monthly,
		TotalPaid:      totalPaid,
		TotalInterest:  totalPaid - loan,
		TotalAmount:    totalPaid + in.DownPayment,
	}, nil
}

// CalculatorService runs simulations and turns them into leads
type CalculatorService struct {
	leads     *LeadService
	analytics *AnalyticsService
	webhooks  *WebhookService
	tasks     *Tasks
}

// NewCalculatorService creates a calculator service
func NewCalculatorService(leads *LeadService, analytics *AnalyticsService, webhooks *WebhookService, tasks *Tasks) *CalculatorService {
	if tasks == nil {
		tasks = NewTasks()
	}
	return &CalculatorService{leads: leads, analytics: analytics, webhooks: webhooks, tasks: tasks}
}

// Simulate computes a simulation and records calculator usage in the background
func (s *CalculatorService) Simulate(ctx context.Context, in FinancingInput, meta RequestMeta) (*FinancingResult, error) {
	result, err := Simulate(in)
	if err != nil {
		return nil, err
	}
	metrics.RecordCalculatorSimulation()

	detached := context.WithoutCancel(ctx)
	snapshot := *result
	s.tasks.Go("calculator usage", func() {
		if s.analytics != nil {
			if _, err := s.analytics.Record(detached, AnalyticsEventInput{
				EventType: domain.AnalyticsUseCalculator,
				Data: map[string]interface{}{
					"property_value":  snapshot.PropertyValue,
					"loan_amount":     snapshot.LoanAmount,
					"monthly_payment": snapshot.MonthlyPayment,
				},
				UserSession: meta.UserSession,
				IPAddress:   meta.IPAddress,
				UserAgent:   meta.UserAgent,
			}); err != nil {
				log.Printf("[CALCULATOR] Warning: analytics failed: %v", err)
			}
		}
		if s.webhooks != nil {
			if _, err := s.webhooks.Trigger(detached, domain.EventCalculatorUse, snapshot); err != nil {
				log.Printf("[CALCULATOR] Warning: fan-out failed: %v", err)
			}
		}
	})

	return &snapshot, nil
}

// SubmitLead simulates and submits the visitor as a financing_calculator lead
func (s *CalculatorService) SubmitLead(ctx context.Context, in FinancingLeadInput, meta RequestMeta) (*domain.Lead, *FinancingResult, error) {
	result, err := Simulate(in.FinancingInput)
	if err != nil {
		return nil, nil, err
	}

	message := SimulationSummary(result)
	source := domain.LeadSourceFinancingCalculator
	interest := "financiamento"
	lead, err := s.leads.Submit(ctx, LeadInput{
		Name:       in.Name,
		Phone:      in.Phone,
		Email:      in.Email,
		Message:    &message,
		PropertyID: in.PropertyID,
		LeadSource: &source,
		Interest:   &interest,
	}, meta)
	if err != nil {
		return nil, nil, err
	}
	return lead, result, nil
}

// SimulationSummary is the synthetic lead message describing a simulation
func SimulationSummary(r *FinancingResult) string {
	var b strings.Builder
	b.WriteString("Solicitou simulação de financiamento\n\n")
	fmt.Fprintf(&b, "Valor do Imóvel: %s\n", FormatBRL(r.PropertyValue))
	fmt.Fprintf(&b, "Entrada: %s\n", FormatBRL(r.DownPayment))
	fmt.Fprintf(&b, "Taxa de Juros: %s%% a.a.\n", strconv.FormatFloat(r.InterestRate, 'f', -1, 64))
	fmt.Fprintf(&b, "Prazo: %d meses\n", r.TermMonths)
	fmt.Fprintf(&b, "Parcela Mensal: %s\n", FormatBRL(r.MonthlyPayment))
	fmt.Fprintf(&b, "Total de Juros: %s\n", FormatBRL(r.TotalInterest))
	fmt.Fprintf(&b, "Valor Total: %s", FormatBRL(r.TotalAmount))
	return b.String()
}

// FormatBRL formats an amount as Brazilian reais, e.g. R$ 1.234,56
func FormatBRL(v float64) string {
	negative := v < 0
	cents := int64(math.Round(math.Abs(v) * 100))
	whole, frac := cents/100, cents%100

	digits := strconv.FormatInt(whole, 10)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), frac)
}
