package wizard

import (
	"time"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/financing"
)

// ResumeStep picks the step a persisted sale re-enters the wizard at. The
// second result is false for sales that can no longer be edited.
func ResumeStep(statusID int) (Step, bool) {
	switch statusID {
	case domain.SaleStatusCompleted, domain.SaleStatusCancelled:
		return 0, false
	case domain.SaleStatusVerified:
		return StepProductSelection, true
	case domain.SaleStatusContracted, domain.SaleStatusPaymentPending:
		return StepDetailsConfirmation, true
	default:
		return StepLevelVerification, true
	}
}

// Hydrate builds an edit-mode session from a persisted sale. A unit already
// on the sale is treated as registered, so the product step never submits it
// again. When the session lands on details confirmation the plan conditions
// are requested so the breakdown can be shown.
func Hydrate(id string, operator string, sale domain.Sale, now time.Time) (State, []Effect, error) {
	step, ok := ResumeStep(sale.SaleStatusID)
	if !ok {
		return State{}, nil, invalid("La venta %d ya no puede editarse", sale.ID)
	}
	if sale.ID <= 0 {
		return State{}, nil, invalid("Venta no válida")
	}

	s := New(id, operator, now)
	s.Mode = ModeEdit
	s.Sale.SaleID = sale.ID
	s.Sale.Notes = sale.Notes

	if sale.Client != nil {
		client := *sale.Client
		s.Sale.Client = &client
	}
	if sale.FinancingPlan != nil {
		plan := *sale.FinancingPlan
		s.Sale.FinancingPlan = &plan
	}

	product := sale.Product
	if product == nil && sale.InventoryUnit != nil {
		product = sale.InventoryUnit.Product
	}
	if product != nil && sale.InventoryUnit != nil {
		p := *product
		unit := *sale.InventoryUnit
		unit.Product = nil
		s.Sale.Product = &p
		s.Sale.InventoryUnit = &unit
		s.Sale.IsProductSaved = true
		s.Sale.ProductLocked = true
	}

	s.Sale.TotalAmount = sale.TotalAmount.Or(0)
	if s.Sale.TotalAmount <= 0 && s.Sale.InventoryUnit != nil {
		s.Sale.TotalAmount = s.Sale.InventoryUnit.Price.Or(0)
	}
	if s.Sale.TotalAmount <= 0 && s.Sale.Product != nil {
		s.Sale.TotalAmount = s.Sale.Product.Price.Or(0)
	}

	if sale.FinancingContract != nil {
		contract := *sale.FinancingContract
		s.Sale.Contract = &contract
	}
	s.Sale.Installments = append([]domain.Installment(nil), sale.Installments...)
	for _, inst := range sale.Installments {
		for _, p := range inst.Payments {
			s.addPayment(p)
		}
	}
	s.refreshEnrollment()

	s.moveTo(step)
	if step != StepDetailsConfirmation {
		return s, nil, nil
	}

	s.Sale.IsStep4Completed = true
	if s.Sale.Contract != nil {
		s.Sale.Breakdown = financing.FromContract(s.Sale.Contract, s.Sale.Installments, s.Sale.FinancingPlan)
	}
	if s.Sale.FinancingPlan == nil {
		return s, nil, nil
	}
	return s, []Effect{s.loadConditionsEffect()}, nil
}
