package financing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saledesk/backend/internal/domain"
)

func TestBuildScheduleStartsWithInitialInstallment(t *testing.T) {
	b := Calculate(1000, standardPlan(), nil, nil, saleDay)
	schedule := BuildSchedule(b, saleDay)
	require.Len(t, schedule, 4)

	initial := schedule[0]
	assert.True(t, initial.IsInicial)
	assert.Equal(t, 0, initial.Number)
	assert.Equal(t, "2026-03-01", initial.DueDate.String())
	assert.InDelta(t, 100.0, initial.Amount, 0.001)
	assert.InDelta(t, 100.0, initial.AmountPending.Value, 0.001)

	sum := 0.0
	for i, inst := range schedule[1:] {
		assert.False(t, inst.IsInicial)
		assert.Equal(t, i+1, inst.Number)
		assert.Equal(t, b.InstallmentDates[i], inst.DueDate)
		sum += inst.Amount
	}
	assert.InDelta(t, b.FinancedAmount+b.InterestAmount+b.ProcessingFee, sum, 0.003)
}

func TestBuildScheduleNilBreakdown(t *testing.T) {
	assert.Nil(t, BuildSchedule(nil, saleDay))
}

func TestContractRoundTripThroughFromContract(t *testing.T) {
	b := Calculate(1000, standardPlan(), nil, nil, saleDay)
	contract := ContractFromBreakdown(42, b, "cliente frecuente")
	schedule := BuildSchedule(b, saleDay)

	assert.Equal(t, int64(42), contract.SaleID)
	assert.Equal(t, "cliente frecuente", contract.Notes)

	// persisted schedules may come back out of order
	shuffled := []domain.Installment{schedule[2], schedule[0], schedule[3], schedule[1]}
	derived := FromContract(&contract, shuffled, standardPlan())
	require.NotNil(t, derived)

	assert.Equal(t, b.PlanID, derived.PlanID)
	assert.Equal(t, b.CalculatedDownPayment, derived.CalculatedDownPayment)
	assert.Equal(t, b.FinancedAmount, derived.FinancedAmount)
	assert.Equal(t, b.TotalAmountToRepay, derived.TotalAmountToRepay)
	assert.Equal(t, b.FinalProductCost, derived.FinalProductCost)
	assert.Equal(t, b.InstallmentDates, derived.InstallmentDates)
	assert.Equal(t, b.TotalAmountFinanced, derived.TotalAmountFinanced)
	assert.Equal(t, "Plan 3 cuotas", derived.SelectedFinancingPlan.Name)
}
