package wizard

import (
	"time"

	"saledesk/backend/internal/domain"
)

// Event is anything that moves a session: an operator action or the outcome
// of a platform call.
type Event interface {
	event()
}

// Effect is a platform call requested by a transition.
type Effect interface {
	effect()
}

// Operator actions.

type SelectClient struct {
	ClientID int64
}

type VerifyLevel struct{}

type SelectProduct struct {
	Unit domain.InventoryUnit
}

type ConfirmDetails struct {
	Notes string
	Today time.Time
}

type SelectPaymentMethod struct {
	PaymentMethodID int64
}

type SubmitPayment struct {
	Amount    float64
	Reference string
	PaidAt    time.Time
}

type FinalizeSale struct{}

type Previous struct{}

type CancelSale struct {
	Notes string
}

// Platform outcomes.

type SaleCreated struct {
	Sale domain.Sale
}

type EligibilityResolved struct {
	Verification domain.SaleVerification
}

type SaleItemRegistered struct {
	Sale *domain.Sale
}

type PlanConditionsLoaded struct {
	Conditions *domain.PlanConditions
	Today      time.Time
}

type ContractConfirmed struct {
	Contract     domain.FinancingContract
	Installments []domain.Installment
}

type PaymentMethodsLoaded struct {
	Methods []domain.PaymentMethod
}

type InitialInstallmentLoaded struct {
	Installment domain.Installment
}

type PaymentRegistered struct {
	Receipt domain.PaymentReceipt
}

type SaleCompleted struct{}

type SaleCancelled struct{}

// EffectFailed reports a platform call that did not succeed. Message is
// already suitable for the operator.
type EffectFailed struct {
	Effect  Effect
	Message string
}

func (SelectClient) event()             {}
func (VerifyLevel) event()              {}
func (SelectProduct) event()            {}
func (ConfirmDetails) event()           {}
func (SelectPaymentMethod) event()      {}
func (SubmitPayment) event()            {}
func (FinalizeSale) event()             {}
func (Previous) event()                 {}
func (CancelSale) event()               {}
func (SaleCreated) event()              {}
func (EligibilityResolved) event()      {}
func (SaleItemRegistered) event()       {}
func (PlanConditionsLoaded) event()     {}
func (ContractConfirmed) event()        {}
func (PaymentMethodsLoaded) event()     {}
func (InitialInstallmentLoaded) event() {}
func (PaymentRegistered) event()        {}
func (SaleCompleted) event()            {}
func (SaleCancelled) event()            {}
func (EffectFailed) event()             {}

type CreateSale struct {
	ClientID int64
}

type VerifyEligibility struct {
	SaleID int64
}

type RegisterSaleItem struct {
	SaleID int64
	Item   domain.SaleItemRequest
}

type LoadPlanConditions struct {
	FinancingPlanID int64
	BrandID         int64
}

type FetchContract struct {
	SaleID int64
}

type SubmitContract struct {
	SaleID     int64
	Submission domain.ContractSubmission
}

type LoadPaymentMethods struct{}

type LoadInitialInstallment struct {
	SaleID int64
}

type RegisterPayment struct {
	SaleID        int64
	InstallmentID int64
	Payment       domain.PaymentRequest
}

type CompleteSale struct {
	SaleID int64
}

type CancelSaleCall struct {
	SaleID int64
	Notes  string
}

func (CreateSale) effect()             {}
func (VerifyEligibility) effect()      {}
func (RegisterSaleItem) effect()       {}
func (LoadPlanConditions) effect()     {}
func (FetchContract) effect()          {}
func (SubmitContract) effect()         {}
func (LoadPaymentMethods) effect()     {}
func (LoadInitialInstallment) effect() {}
func (RegisterPayment) effect()        {}
func (CompleteSale) effect()           {}
func (CancelSaleCall) effect()         {}
