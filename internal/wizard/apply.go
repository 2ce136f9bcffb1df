package wizard

import (
	"fmt"
	"math"
	"strings"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/financing"
)

const amountTolerance = 0.001

// Apply computes the session that results from ev. A *ValidationError means
// the action was refused and s is returned untouched with no effects.
func Apply(s State, ev Event) (State, []Effect, error) {
	if s.Finished() {
		return s, nil, invalid("El proceso de venta ya finalizó")
	}

	next := s.clone()
	next.LastError = ""

	var (
		effects []Effect
		err     error
	)

	switch e := ev.(type) {
	case SelectClient:
		effects, err = next.selectClient(e)
	case SaleCreated:
		next.saleCreated(e)
	case VerifyLevel:
		effects, err = next.verifyLevel()
	case EligibilityResolved:
		next.eligibilityResolved(e)
	case SelectProduct:
		effects, err = next.selectProduct(e)
	case SaleItemRegistered:
		effects = next.saleItemRegistered(e)
	case PlanConditionsLoaded:
		next.planConditionsLoaded(e)
	case ConfirmDetails:
		effects, err = next.confirmDetails(e)
	case ContractConfirmed:
		effects = next.contractConfirmed(e)
	case PaymentMethodsLoaded:
		next.Sale.PaymentMethods = append([]domain.PaymentMethod(nil), e.Methods...)
	case InitialInstallmentLoaded:
		next.upsertInstallment(e.Installment)
	case SelectPaymentMethod:
		err = next.selectPaymentMethod(e)
	case SubmitPayment:
		effects, err = next.submitPayment(e)
	case PaymentRegistered:
		next.paymentRegistered(e)
	case FinalizeSale:
		effects, err = next.finalize()
	case SaleCompleted:
		next.Exit = ExitCompleted
		next.RedirectTo = fmt.Sprintf("/sales/%d", next.Sale.SaleID)
	case Previous:
		err = next.previous()
	case CancelSale:
		effects, err = next.cancel(e)
	case SaleCancelled:
		saleID := next.Sale.SaleID
		next.Sale = domain.SaleAggregate{SaleID: saleID}
		next.Exit = ExitCancelled
		next.RedirectTo = "/sales"
	case EffectFailed:
		next.effectFailed(e)
	default:
		return s, nil, invalid("Acción desconocida %T", ev)
	}

	if err != nil {
		return s, nil, err
	}
	return next, effects, nil
}

func (s *State) requireStep(step Step) error {
	if s.Step != step {
		return invalid("Acción no disponible en el paso %s", s.Step)
	}
	return nil
}

func (s *State) selectClient(e SelectClient) ([]Effect, error) {
	if err := s.requireStep(StepClientSelection); err != nil {
		return nil, err
	}
	if e.ClientID <= 0 {
		return nil, invalid("Seleccione un cliente")
	}
	if s.Sale.SaleID != 0 {
		if s.Sale.Client != nil && s.Sale.Client.ID != e.ClientID {
			return nil, invalid("La venta ya fue creada para otro cliente")
		}
		s.moveTo(StepLevelVerification)
		return nil, nil
	}
	return []Effect{CreateSale{ClientID: e.ClientID}}, nil
}

func (s *State) saleCreated(e SaleCreated) {
	s.Sale.SaleID = e.Sale.ID
	if e.Sale.Client != nil {
		client := *e.Sale.Client
		s.Sale.Client = &client
	}
	s.moveTo(StepLevelVerification)
}

func (s *State) verifyLevel() ([]Effect, error) {
	if err := s.requireStep(StepLevelVerification); err != nil {
		return nil, err
	}
	if s.Sale.SaleID == 0 {
		return nil, invalid("Debe crear la venta antes de verificar el nivel")
	}
	return []Effect{VerifyEligibility{SaleID: s.Sale.SaleID}}, nil
}

func (s *State) eligibilityResolved(e EligibilityResolved) {
	if !e.Verification.Approved {
		s.Exit = ExitRejected
		s.ExitReason = strings.TrimSpace(e.Verification.Reason)
		s.RedirectTo = "/sales"
		return
	}
	if e.Verification.FinancingPlan == nil {
		s.LastError = "La verificación no asignó un plan de financiamiento"
		return
	}
	plan := *e.Verification.FinancingPlan
	s.Sale.FinancingPlan = &plan
	s.moveTo(StepProductSelection)
}

func (s *State) selectProduct(e SelectProduct) ([]Effect, error) {
	if err := s.requireStep(StepProductSelection); err != nil {
		return nil, err
	}
	if s.Sale.FinancingPlan == nil {
		return nil, invalid("La venta no tiene un plan de financiamiento asignado")
	}
	if err := financing.CheckInstallments(*s.Sale.FinancingPlan, nil); err != nil {
		return nil, &ValidationError{Message: installmentLimitMessage}
	}

	if s.Sale.IsProductSaved {
		if s.Sale.InventoryUnit != nil && e.Unit.ID != 0 && e.Unit.ID != s.Sale.InventoryUnit.ID {
			return nil, invalid("El producto de esta venta ya fue registrado y no puede cambiarse")
		}
		return []Effect{s.loadConditionsEffect()}, nil
	}

	if e.Unit.ID <= 0 {
		return nil, invalid("Seleccione una unidad de inventario")
	}
	if e.Unit.Product == nil || e.Unit.Product.ID <= 0 {
		return nil, invalid("La unidad seleccionada no tiene un producto asociado")
	}
	price := e.Unit.Price.Or(e.Unit.Product.Price.Or(0))
	if price <= 0 {
		return nil, invalid("El producto seleccionado no tiene precio")
	}

	unit := e.Unit
	product := *e.Unit.Product
	unit.Product = nil
	s.Sale.Product = &product
	s.Sale.InventoryUnit = &unit
	s.Sale.TotalAmount = price

	return []Effect{RegisterSaleItem{
		SaleID: s.Sale.SaleID,
		Item: domain.SaleItemRequest{
			ProductID:       product.ID,
			InventoryUnitID: unit.ID,
			Amount:          price,
		},
	}}, nil
}

func (s *State) loadConditionsEffect() Effect {
	brandID := int64(0)
	if s.Sale.Product != nil {
		brandID = s.Sale.Product.BrandID
	}
	return LoadPlanConditions{FinancingPlanID: s.Sale.FinancingPlan.ID, BrandID: brandID}
}

func (s *State) saleItemRegistered(e SaleItemRegistered) []Effect {
	s.Sale.IsProductSaved = true
	s.Sale.ProductLocked = true
	if e.Sale != nil && e.Sale.TotalAmount.Valid && e.Sale.TotalAmount.Value > 0 {
		s.Sale.TotalAmount = e.Sale.TotalAmount.Value
	}
	return []Effect{s.loadConditionsEffect()}
}

var installmentLimitMessage = fmt.Sprintf("El plan de financiamiento excede el máximo de %d cuotas", financing.MaxInstallments)

func (s *State) planConditionsLoaded(e PlanConditionsLoaded) {
	if e.Conditions != nil {
		conditions := *e.Conditions
		s.Sale.PlanConditions = &conditions
	} else {
		s.Sale.PlanConditions = nil
	}

	if s.Sale.Contract != nil {
		s.Sale.Breakdown = financing.FromContract(s.Sale.Contract, s.Sale.Installments, s.Sale.FinancingPlan)
	} else {
		if s.Sale.FinancingPlan != nil {
			if err := financing.CheckInstallments(*s.Sale.FinancingPlan, s.Sale.PlanConditions); err != nil {
				s.Sale.Breakdown = nil
				s.LastError = installmentLimitMessage
				return
			}
		}
		s.Sale.Breakdown = financing.Calculate(s.Sale.TotalAmount, s.Sale.FinancingPlan, s.Sale.PlanConditions, creditAvailable(s.Sale.Client), e.Today)
	}
	if s.Sale.Breakdown == nil {
		s.LastError = "No fue posible calcular el financiamiento"
		return
	}
	s.moveTo(StepDetailsConfirmation)
}

func creditAvailable(client *domain.Client) *float64 {
	if client == nil || !client.CreditAvailable.Valid {
		return nil
	}
	v := client.CreditAvailable.Value
	return &v
}

func (s *State) confirmDetails(e ConfirmDetails) ([]Effect, error) {
	if err := s.requireStep(StepDetailsConfirmation); err != nil {
		return nil, err
	}
	s.Sale.Notes = strings.TrimSpace(e.Notes)

	if s.Sale.Contract != nil || s.Sale.IsStep4Completed {
		return []Effect{FetchContract{SaleID: s.Sale.SaleID}}, nil
	}
	if s.Sale.Breakdown == nil {
		return nil, invalid("El detalle de financiamiento no está disponible")
	}

	return []Effect{SubmitContract{
		SaleID: s.Sale.SaleID,
		Submission: domain.ContractSubmission{
			Contract:     financing.ContractFromBreakdown(s.Sale.SaleID, s.Sale.Breakdown, s.Sale.Notes),
			Installments: financing.BuildSchedule(s.Sale.Breakdown, e.Today),
		},
	}}, nil
}

func (s *State) contractConfirmed(e ContractConfirmed) []Effect {
	contract := e.Contract
	s.Sale.Contract = &contract
	if len(e.Installments) > 0 {
		s.Sale.Installments = append([]domain.Installment(nil), e.Installments...)
	}
	if s.Sale.Breakdown == nil {
		s.Sale.Breakdown = financing.FromContract(s.Sale.Contract, s.Sale.Installments, s.Sale.FinancingPlan)
	}
	s.Sale.IsStep4Completed = true
	s.refreshEnrollment()
	s.moveTo(StepPaymentCollection)

	return []Effect{
		LoadPaymentMethods{},
		LoadInitialInstallment{SaleID: s.Sale.SaleID},
	}
}

func (s *State) upsertInstallment(inst domain.Installment) {
	replaced := false
	for i := range s.Sale.Installments {
		current := s.Sale.Installments[i]
		if (inst.ID != 0 && current.ID == inst.ID) || (current.Number == inst.Number && current.IsInicial == inst.IsInicial) {
			s.Sale.Installments[i] = inst
			replaced = true
			break
		}
	}
	if !replaced {
		s.Sale.Installments = append([]domain.Installment{inst}, s.Sale.Installments...)
	}
	for _, p := range inst.Payments {
		s.addPayment(p)
	}
	s.refreshEnrollment()
}

func (s *State) addPayment(p domain.Payment) {
	if p.ID != 0 {
		for _, existing := range s.Sale.Payments {
			if existing.ID == p.ID {
				return
			}
		}
	}
	s.Sale.Payments = append(s.Sale.Payments, p)
}

// InitialInstallment returns the down payment installment, if known.
func InitialInstallment(agg domain.SaleAggregate) (domain.Installment, bool) {
	for _, inst := range agg.Installments {
		if inst.IsInicial {
			return inst, true
		}
	}
	for _, inst := range agg.Installments {
		if inst.Number == 0 {
			return inst, true
		}
	}
	return domain.Installment{}, false
}

// PendingAmount is what is still owed on inst. When the platform does not
// report it, it is derived from the applied payments.
func PendingAmount(inst domain.Installment) float64 {
	if inst.AmountPending.Valid {
		return math.Max(inst.AmountPending.Value, 0)
	}
	paid := 0.0
	for _, p := range inst.Payments {
		paid += p.Amount
	}
	return math.Max(financing.Round3(inst.Amount-paid), 0)
}

func (s *State) refreshEnrollment() {
	initial, ok := InitialInstallment(s.Sale)
	s.Sale.IsEnrollmentReady = ok && PendingAmount(initial) <= amountTolerance
}

func (s *State) selectPaymentMethod(e SelectPaymentMethod) error {
	if err := s.requireStep(StepPaymentCollection); err != nil {
		return err
	}
	for _, method := range s.Sale.PaymentMethods {
		if method.ID == e.PaymentMethodID {
			s.Sale.SelectedPaymentMethodID = method.ID
			return nil
		}
	}
	return invalid("Método de pago no válido")
}

func (s *State) submitPayment(e SubmitPayment) ([]Effect, error) {
	if err := s.requireStep(StepPaymentCollection); err != nil {
		return nil, err
	}
	if s.Sale.SelectedPaymentMethodID == 0 {
		return nil, invalid("Seleccione un método de pago")
	}
	var method domain.PaymentMethod
	for _, m := range s.Sale.PaymentMethods {
		if m.ID == s.Sale.SelectedPaymentMethodID {
			method = m
			break
		}
	}
	if e.Amount <= 0 || math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return nil, invalid("El monto del pago debe ser mayor a cero")
	}
	reference := strings.TrimSpace(e.Reference)
	if method.RequiresReference && reference == "" {
		return nil, invalid("El método de pago %s requiere una referencia", method.Name)
	}

	initial, ok := InitialInstallment(s.Sale)
	if !ok || initial.ID == 0 {
		return nil, invalid("La cuota inicial no está disponible")
	}
	pending := PendingAmount(initial)
	if pending <= amountTolerance {
		return nil, invalid("La cuota inicial ya está pagada")
	}
	if e.Amount-pending > amountTolerance {
		return nil, invalid("El monto excede el saldo pendiente de %.2f", pending)
	}
	if e.PaidAt.IsZero() {
		return nil, invalid("Ingrese la fecha del pago")
	}

	return []Effect{RegisterPayment{
		SaleID:        s.Sale.SaleID,
		InstallmentID: initial.ID,
		Payment: domain.PaymentRequest{
			PaymentMethodID: method.ID,
			Amount:          financing.Round3(e.Amount),
			Reference:       reference,
			PaidAt:          domain.NewDate(e.PaidAt),
		},
	}}, nil
}

func (s *State) paymentRegistered(e PaymentRegistered) {
	s.addPayment(e.Receipt.Payment)
	inst := e.Receipt.Installment
	if inst.ID == 0 {
		s.refreshEnrollment()
		s.Sale.SelectedPaymentMethodID = 0
		return
	}
	found := false
	for _, p := range inst.Payments {
		if p.ID != 0 && p.ID == e.Receipt.Payment.ID {
			found = true
			break
		}
	}
	if !found {
		inst.Payments = append(append([]domain.Payment(nil), inst.Payments...), e.Receipt.Payment)
	}
	s.upsertInstallment(inst)
	s.Sale.SelectedPaymentMethodID = 0
}

func (s *State) finalize() ([]Effect, error) {
	if err := s.requireStep(StepPaymentCollection); err != nil {
		return nil, err
	}
	if !s.Sale.IsEnrollmentReady {
		return nil, invalid("La cuota inicial debe estar pagada para finalizar la venta")
	}
	return []Effect{CompleteSale{SaleID: s.Sale.SaleID}}, nil
}

func (s *State) previous() error {
	if s.Step <= StepClientSelection {
		return invalid("No hay un paso anterior")
	}
	s.moveTo(s.Step - 1)
	return nil
}

func (s *State) cancel(e CancelSale) ([]Effect, error) {
	if !CanCancel(*s) {
		return nil, invalid("La venta no puede cancelarse en este momento")
	}
	notes := strings.TrimSpace(e.Notes)
	if notes == "" {
		return nil, invalid("Indique el motivo de la cancelación")
	}
	return []Effect{CancelSaleCall{SaleID: s.Sale.SaleID, Notes: notes}}, nil
}

func (s *State) effectFailed(e EffectFailed) {
	s.LastError = strings.TrimSpace(e.Message)
	if s.LastError == "" {
		s.LastError = "Ocurrió un error inesperado"
	}
	if _, ok := e.Effect.(RegisterSaleItem); ok {
		s.Sale.Product = nil
		s.Sale.InventoryUnit = nil
		s.Sale.TotalAmount = 0
	}
}
