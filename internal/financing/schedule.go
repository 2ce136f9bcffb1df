package financing

import (
	"sort"
	"time"

	"saledesk/backend/internal/domain"
)

// BuildSchedule expands a breakdown into installment 0 (the down payment, due
// today) followed by the regular installments. Regular installments split the
// total to repay evenly; rounding drift is not pushed onto the last one.
func BuildSchedule(breakdown *domain.FinancingBreakdown, today time.Time) []domain.Installment {
	if breakdown == nil {
		return nil
	}

	count := boundedCount(breakdown.InstallmentCount)
	schedule := make([]domain.Installment, 0, count+1)
	schedule = append(schedule, domain.Installment{
		Number:        0,
		DueDate:       domain.NewDate(today),
		Amount:        breakdown.CalculatedDownPayment,
		AmountPending: domain.Num(breakdown.CalculatedDownPayment),
		IsInicial:     true,
	})

	if count < 1 {
		return schedule
	}

	regular := Round3(breakdown.TotalAmountToRepay / float64(count))
	dates := breakdown.InstallmentDates
	if len(dates) != count {
		dates = InstallmentDates(today, count)
	}
	for i, due := range dates {
		schedule = append(schedule, domain.Installment{
			Number:        i + 1,
			DueDate:       due,
			Amount:        regular,
			AmountPending: domain.Num(regular),
		})
	}
	return schedule
}

func ContractFromBreakdown(saleID int64, breakdown *domain.FinancingBreakdown, notes string) domain.FinancingContract {
	return domain.FinancingContract{
		SaleID:             saleID,
		FinancingPlanID:    breakdown.PlanID,
		TotalProductCost:   breakdown.TotalProductCost,
		DownPayment:        breakdown.CalculatedDownPayment,
		FinancedAmount:     breakdown.FinancedAmount,
		ProcessingFee:      breakdown.ProcessingFee,
		InterestAmount:     breakdown.InterestAmount,
		TotalAmountToRepay: breakdown.TotalAmountToRepay,
		InstallmentCount:   breakdown.InstallmentCount,
		InstallmentAmount:  breakdown.InstallmentAmount,
		FinalProductCost:   breakdown.FinalProductCost,
		BlockPenaltyAmount: breakdown.BlockPenaltyAmount,
		Notes:              notes,
	}
}

// FromContract rebuilds the breakdown of a sale that already has a persisted
// contract, so the figures shown match what was agreed rather than what the
// current plan would produce.
func FromContract(contract *domain.FinancingContract, installments []domain.Installment, plan *domain.FinancingPlan) *domain.FinancingBreakdown {
	if contract == nil {
		return nil
	}

	regular := make([]domain.Installment, 0, len(installments))
	for _, inst := range installments {
		if inst.IsInicial || inst.Number == 0 {
			continue
		}
		regular = append(regular, inst)
	}
	sort.Slice(regular, func(i, j int) bool {
		return regular[i].Number < regular[j].Number
	})

	dates := make([]domain.Date, 0, len(regular))
	for _, inst := range regular {
		dates = append(dates, inst.DueDate)
	}

	count := contract.InstallmentCount
	if count == 0 {
		count = len(regular)
	}

	breakdown := &domain.FinancingBreakdown{
		PlanID:                contract.FinancingPlanID,
		TotalProductCost:      contract.TotalProductCost,
		CalculatedDownPayment: contract.DownPayment,
		FinancedAmount:        contract.FinancedAmount,
		ProcessingFee:         contract.ProcessingFee,
		InterestAmount:        contract.InterestAmount,
		TotalAmountToRepay:    contract.TotalAmountToRepay,
		InstallmentCount:      count,
		InstallmentAmount:     contract.InstallmentAmount,
		FinalProductCost:      contract.FinalProductCost,
		InstallmentDates:      dates,
		TotalAmountFinanced:   Round3(contract.FinancedAmount + contract.InterestAmount),
		BlockPenaltyAmount:    contract.BlockPenaltyAmount,
	}
	if plan != nil {
		breakdown.SelectedFinancingPlan = *plan
	}
	return breakdown
}
