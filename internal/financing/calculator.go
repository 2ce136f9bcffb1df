// Package financing computes the financing breakdown and installment
// schedule for a sale. Everything here is pure: no I/O, and the current day
// is always passed in by the caller.
package financing

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"saledesk/backend/internal/domain"
)

// InstallmentSpacingDays is the distance between the sale day and the first
// installment, and between consecutive installments. The plan's
// installment_frecuency is intentionally not used for spacing yet.
const InstallmentSpacingDays = 14

// MaxInstallments is the largest installment count a plan may ask for.
// Calculate and BuildSchedule never produce more than this many installments.
const MaxInstallments = 600

var ErrInstallmentLimit = fmt.Errorf("installment count exceeds %d", MaxInstallments)

// Calculate returns the financing breakdown for totalAmount under plan, with
// conditions overriding the plan's installments, down payment rate and
// financing ceiling. creditAvailable is the customer's remaining credit; nil
// means unlimited. A nil plan yields nil: financing is not selected yet.
func Calculate(totalAmount float64, plan *domain.FinancingPlan, conditions *domain.PlanConditions, creditAvailable *float64, today time.Time) *domain.FinancingBreakdown {
	if plan == nil {
		return nil
	}
	if math.IsNaN(totalAmount) || math.IsInf(totalAmount, 0) || totalAmount < 0 {
		totalAmount = 0
	}

	effective := MergeConditions(*plan, conditions)

	downPaymentRate := effective.MinDownPaymentRate.Or(0) / 100
	downPaymentFixed := effective.MinDownPaymentFixed.Or(0)
	processingFeeRate := effective.ProcessingFeeRate.Or(0) / 100
	processingFeeFixed := effective.ProcessingFeeFixed.Or(0)
	interestRate := effective.InterestRate.Or(0) / 100
	blockPenaltyRate := effective.BlockPenaltyRate.Or(0) / 100

	ceiling := EffectiveCeiling(effective.MaxFinancingAmount, creditAvailable)

	downPayment := Round3(math.Max(totalAmount*downPaymentRate, downPaymentFixed))
	if downPayment > totalAmount {
		downPayment = Round3(totalAmount)
	}

	financedBase := totalAmount - downPayment
	if financedBase > ceiling {
		financedBase = ceiling
		downPayment = Round3(totalAmount - financedBase)
	}
	financedAmount := Round3(financedBase)

	processingFee := Round3(totalAmount*processingFeeRate + processingFeeFixed)
	interestAmount := Round3(financedAmount * interestRate)

	installmentCount := installmentCount(effective.Cuotas)
	installmentAmount := 0.0
	if installmentCount > 0 {
		installmentAmount = Round3(financedAmount / float64(installmentCount))
	}

	totalAmountToRepay := Round3(financedAmount + interestAmount + processingFee)

	return &domain.FinancingBreakdown{
		PlanID:                effective.ID,
		TotalProductCost:      Round3(totalAmount),
		CalculatedDownPayment: downPayment,
		FinancedAmount:        financedAmount,
		ProcessingFee:         processingFee,
		InterestAmount:        interestAmount,
		TotalAmountToRepay:    totalAmountToRepay,
		InstallmentCount:      installmentCount,
		InstallmentAmount:     installmentAmount,
		FinalProductCost:      Round3(downPayment + totalAmountToRepay),
		InstallmentDates:      InstallmentDates(today, installmentCount),
		TotalAmountFinanced:   Round3(financedAmount + interestAmount),
		BlockPenaltyAmount:    Round3(totalAmount * blockPenaltyRate),
		SelectedFinancingPlan: effective,
	}
}

// CheckInstallments rejects a plan whose installment count, after conditions
// are applied, is above MaxInstallments. A missing or negative count is
// accepted and reads as zero installments.
func CheckInstallments(plan domain.FinancingPlan, conditions *domain.PlanConditions) error {
	cuotas := MergeConditions(plan, conditions).Cuotas
	if cuotas.Valid && cuotas.Value > MaxInstallments {
		return ErrInstallmentLimit
	}
	return nil
}

func installmentCount(cuotas domain.Number) int {
	v := cuotas.Or(0)
	if v <= 0 {
		return 0
	}
	return int(math.Min(v, MaxInstallments))
}

func boundedCount(count int) int {
	if count < 0 {
		return 0
	}
	return min(count, MaxInstallments)
}

// MergeConditions overlays the present condition fields onto a copy of plan.
func MergeConditions(plan domain.FinancingPlan, conditions *domain.PlanConditions) domain.FinancingPlan {
	if conditions == nil {
		return plan
	}
	if conditions.Installments.Valid {
		plan.Cuotas = conditions.Installments
	}
	if conditions.DownPayment.Valid {
		plan.MinDownPaymentRate = conditions.DownPayment
	}
	if conditions.CreditLimit.Valid {
		plan.MaxFinancingAmount = conditions.CreditLimit
	}
	return plan
}

// EffectiveCeiling is min(maxFinancing, creditAvailable) where a missing bound
// is unlimited. The result is never negative.
func EffectiveCeiling(maxFinancing domain.Number, creditAvailable *float64) float64 {
	ceiling := maxFinancing.Or(math.Inf(1))
	if creditAvailable != nil && !math.IsNaN(*creditAvailable) {
		ceiling = math.Min(ceiling, *creditAvailable)
	}
	if ceiling < 0 {
		return 0
	}
	return ceiling
}

// InstallmentDates returns count due dates, the first InstallmentSpacingDays
// after today and each following one the same distance after the previous.
func InstallmentDates(today time.Time, count int) []domain.Date {
	count = boundedCount(count)
	dates := make([]domain.Date, 0, count)
	due := domain.NewDate(today)
	for i := 0; i < count; i++ {
		due = domain.NewDate(due.AddDate(0, 0, InstallmentSpacingDays))
		dates = append(dates, due)
	}
	return dates
}

func Round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}
