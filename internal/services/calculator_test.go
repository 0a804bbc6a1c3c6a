package services

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/config"
	"realestate/internal/domain"
	apperrors "realestate/pkg/errors"
)

func float64Ptr(v float64) *float64 {
	return &v
}

func intPtr(v int) *int {
	return &v
}

func TestSimulateDefaults(t *testing.T) {
	result, err := Simulate(FinancingInput{PropertyValue: 600000, DownPayment: 120000})
	require.NoError(t, err)

	assert.Equal(t, 480000.0, result.LoanAmount)
	assert.Equal(t, 9.5, result.InterestRate)
	assert.Equal(t, 360, result.TermMonths)
	assert.InDelta(t, 4036.10, result.MonthlyPayment, 0.01)
	assert.InDelta(t, result.MonthlyPayment*360, result.TotalPaid, 1e-6)
	assert.InDelta(t, result.TotalPaid-480000, result.TotalInterest, 1e-6)
	assert.InDelta(t, result.TotalPaid+120000, result.TotalAmount, 1e-6)
}

func TestSimulateMatchesClosedForm(t *testing.T) {
	in := FinancingInput{PropertyValue: 350000, DownPayment: 70000, InterestRate: float64Ptr(11.2), TermMonths: intPtr(240)}
	result, err := Simulate(in)
	require.NoError(t, err)

	r := 11.2 / 12 / 100
	g := math.Pow(1+r, 240)
	assert.InDelta(t, 280000*r*g/(g-1), result.MonthlyPayment, 1e-9)
}

func TestSimulateZeroRate(t *testing.T) {
	result, err := Simulate(FinancingInput{PropertyValue: 120000, DownPayment: 0, InterestRate: float64Ptr(0), TermMonths: intPtr(120)})
	require.NoError(t, err)

	assert.Equal(t, 1000.0, result.MonthlyPayment)
	assert.Equal(t, 0.0, result.TotalInterest)
	assert.False(t, math.IsNaN(result.MonthlyPayment))
}

func TestSimulateRejectsInvalidInput(t *testing.T) {
	cases := map[string]FinancingInput{
		"zero value":          {PropertyValue: 0},
		"negative down":       {PropertyValue: 100, DownPayment: -1},
		"down equals value":   {PropertyValue: 100, DownPayment: 100},
		"zero term":           {PropertyValue: 100, TermMonths: intPtr(0)},
		"negative rate":       {PropertyValue: 100, InterestRate: float64Ptr(-1)},
		"down exceeds value":  {PropertyValue: 100, DownPayment: 150},
		"negative term":       {PropertyValue: 100, TermMonths: intPtr(-12)},
		"negative everything": {PropertyValue: -5, DownPayment: -5},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Simulate(in)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 0,00", FormatBRL(0))
	assert.Equal(t, "R$ 999,99", FormatBRL(999.99))
	assert.Equal(t, "R$ 1.234,56", FormatBRL(1234.56))
	assert.Equal(t, "R$ 600.000,00", FormatBRL(600000))
	assert.Equal(t, "R$ 1.452.996,07", FormatBRL(1452996.0700048797))
	assert.Equal(t, "-R$ 10,50", FormatBRL(-10.5))
}

func TestCalculatorSubmitLead(t *testing.T) {
	p := newPipeline(t, testGateway)
	calc := NewCalculatorService(p.leads, NewAnalyticsService(p.db, p.settings), p.webhooks, p.tasks)

	lead, result, err := calc.SubmitLead(context.Background(), FinancingLeadInput{
		FinancingInput: FinancingInput{PropertyValue: 600000, DownPayment: 120000},
		Name:           "Carlos",
		Phone:          "11988887777",
	}, RequestMeta{})
	require.NoError(t, err)
	p.leads.Wait()

	assert.Equal(t, domain.LeadSourceFinancingCalculator, lead.LeadSource)
	require.NotNil(t, lead.Message)
	assert.Contains(t, *lead.Message, "Parcela Mensal: R$ 4.036,10")
	assert.Contains(t, *lead.Message, "Prazo: 360 meses")
	assert.InDelta(t, 4036.10, result.MonthlyPayment, 0.01)

	// Only the operator is notified
	assert.Equal(t, []string{testGateway.OperatorPhone}, p.sender.to)
}

func TestCalculatorSubmitLeadValidatesBeforeSaving(t *testing.T) {
	p := newPipeline(t, config.GatewayConfig{})
	calc := NewCalculatorService(p.leads, nil, nil, p.tasks)

	_, _, err := calc.SubmitLead(context.Background(), FinancingLeadInput{
		FinancingInput: FinancingInput{PropertyValue: 100, DownPayment: 100},
		Name:           "Carlos",
		Phone:          "1",
	}, RequestMeta{})
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = calc.SubmitLead(context.Background(), FinancingLeadInput{
		FinancingInput: FinancingInput{PropertyValue: 100},
		Phone:          "1",
	}, RequestMeta{})
	assert.True(t, apperrors.IsValidation(err))

	var count int64
	require.NoError(t, p.db.Model(&domain.Lead{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCalculatorSimulateRecordsUsage(t *testing.T) {
	p := newPipeline(t, config.GatewayConfig{})
	calc := NewCalculatorService(p.leads, NewAnalyticsService(p.db, p.settings), p.webhooks, p.tasks)

	_, err := calc.Simulate(context.Background(), FinancingInput{PropertyValue: 500000, DownPayment: 100000}, RequestMeta{})
	require.NoError(t, err)
	p.tasks.Wait()

	var count int64
	require.NoError(t, p.db.Model(&domain.AnalyticsEvent{}).Where("event_type = ?", domain.AnalyticsUseCalculator).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
