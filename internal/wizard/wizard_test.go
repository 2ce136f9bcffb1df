package wizard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/financing"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testPlan() *domain.FinancingPlan {
	return &domain.FinancingPlan{
		ID:                 7,
		Name:               "Plan 3",
		Cuotas:             domain.Num(3),
		MinDownPaymentRate: domain.Num(10),
		ProcessingFeeRate:  domain.Num(2),
		InterestRate:       domain.Num(5),
		MaxFinancingAmount: domain.Num(10000),
	}
}

func testUnit() domain.InventoryUnit {
	return domain.InventoryUnit{
		ID:           31,
		ProductID:    11,
		SerialNumber: "SN-31",
		Price:        domain.Num(1000),
		Product:      &domain.Product{ID: 11, Name: "Phone X", BrandID: 4, Price: domain.Num(1000)},
	}
}

func mustApply(t *testing.T, s State, ev Event) (State, []Effect) {
	t.Helper()
	next, effects, err := Apply(s, ev)
	require.NoError(t, err)
	return next, effects
}

func requireValidation(t *testing.T, err error) {
	t.Helper()
	var verr *ValidationError
	require.Error(t, err)
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
}

// atProductStep walks a fresh session through client selection and an
// approved verification.
func atProductStep(t *testing.T) State {
	t.Helper()
	s := New("wiz_1", "seller", testNow)
	s, _ = mustApply(t, s, SelectClient{ClientID: 5})
	s, _ = mustApply(t, s, SaleCreated{Sale: domain.Sale{ID: 99, Client: &domain.Client{ID: 5, FirstName: "Ana"}}})
	s, _ = mustApply(t, s, EligibilityResolved{Verification: domain.SaleVerification{Approved: true, FinancingPlan: testPlan()}})
	require.Equal(t, StepProductSelection, s.Step)
	return s
}

func atDetailsStep(t *testing.T) State {
	t.Helper()
	s := atProductStep(t)
	s, _ = mustApply(t, s, SelectProduct{Unit: testUnit()})
	s, _ = mustApply(t, s, SaleItemRegistered{})
	s, _ = mustApply(t, s, PlanConditionsLoaded{Today: testNow})
	require.Equal(t, StepDetailsConfirmation, s.Step)
	return s
}

func atPaymentStep(t *testing.T) State {
	t.Helper()
	s := atDetailsStep(t)
	s, effects := mustApply(t, s, ConfirmDetails{Notes: "ok", Today: testNow})
	submit := effects[0].(SubmitContract)
	installments := submit.Submission.Installments
	for i := range installments {
		installments[i].ID = int64(500 + i)
		installments[i].SaleID = 99
	}
	contract := submit.Submission.Contract
	contract.ID = 70
	s, _ = mustApply(t, s, ContractConfirmed{Contract: contract, Installments: installments})
	s, _ = mustApply(t, s, PaymentMethodsLoaded{Methods: []domain.PaymentMethod{
		{ID: 1, Name: "Efectivo"},
		{ID: 2, Name: "Transferencia", RequiresReference: true},
	}})
	return s
}

func TestNewSessionStartsAtClientSelection(t *testing.T) {
	s := New("wiz_1", "seller", testNow)
	assert.Equal(t, StepClientSelection, s.Step)
	assert.Equal(t, "client_selection", s.StepName)
	assert.Equal(t, ModeNew, s.Mode)
	assert.False(t, CanCancel(s))
	assert.False(t, CanFinalize(s))
}

func TestSelectClientEmitsCreateSale(t *testing.T) {
	s := New("wiz_1", "seller", testNow)
	next, effects := mustApply(t, s, SelectClient{ClientID: 5})

	assert.Equal(t, StepClientSelection, next.Step)
	require.Len(t, effects, 1)
	assert.Equal(t, CreateSale{ClientID: 5}, effects[0])

	_, _, err := Apply(s, SelectClient{})
	requireValidation(t, err)
}

func TestRejectedVerificationExitsWithoutAdvancing(t *testing.T) {
	s := New("wiz_1", "seller", testNow)
	s, _ = mustApply(t, s, SaleCreated{Sale: domain.Sale{ID: 99}})

	s, effects := mustApply(t, s, VerifyLevel{})
	require.Equal(t, []Effect{VerifyEligibility{SaleID: 99}}, effects)

	s, effects = mustApply(t, s, EligibilityResolved{Verification: domain.SaleVerification{Reason: "Nivel insuficiente"}})
	assert.Empty(t, effects)
	assert.Equal(t, StepLevelVerification, s.Step)
	assert.Equal(t, ExitRejected, s.Exit)
	assert.Equal(t, "/sales", s.RedirectTo)
	assert.Equal(t, "Nivel insuficiente", s.ExitReason)
	assert.Nil(t, s.Sale.FinancingPlan)

	_, _, err := Apply(s, VerifyLevel{})
	requireValidation(t, err)
}

func TestSelectProductRegistersItemThenLoadsConditions(t *testing.T) {
	s := atProductStep(t)

	s, effects := mustApply(t, s, SelectProduct{Unit: testUnit()})
	require.Len(t, effects, 1)
	register, ok := effects[0].(RegisterSaleItem)
	require.True(t, ok)
	assert.Equal(t, int64(99), register.SaleID)
	assert.Equal(t, domain.SaleItemRequest{ProductID: 11, InventoryUnitID: 31, Amount: 1000}, register.Item)
	assert.False(t, s.Sale.IsProductSaved)
	assert.Equal(t, 1000.0, s.Sale.TotalAmount)

	s, effects = mustApply(t, s, SaleItemRegistered{})
	assert.True(t, s.Sale.IsProductSaved)
	assert.True(t, s.Sale.ProductLocked)
	assert.Equal(t, []Effect{LoadPlanConditions{FinancingPlanID: 7, BrandID: 4}}, effects)

	s, _ = mustApply(t, s, PlanConditionsLoaded{Today: testNow})
	assert.Equal(t, StepDetailsConfirmation, s.Step)
	require.NotNil(t, s.Sale.Breakdown)
	assert.InDelta(t, 100, s.Sale.Breakdown.CalculatedDownPayment, 0.001)
	assert.InDelta(t, 965, s.Sale.Breakdown.TotalAmountToRepay, 0.001)
}

func TestFailedItemRegistrationRollsBackSelection(t *testing.T) {
	s := atProductStep(t)
	s, effects := mustApply(t, s, SelectProduct{Unit: testUnit()})

	s, _ = mustApply(t, s, EffectFailed{Effect: effects[0], Message: "Unidad no disponible"})
	assert.Equal(t, StepProductSelection, s.Step)
	assert.Nil(t, s.Sale.Product)
	assert.Nil(t, s.Sale.InventoryUnit)
	assert.Zero(t, s.Sale.TotalAmount)
	assert.Equal(t, "Unidad no disponible", s.LastError)

	s, effects = mustApply(t, s, SelectProduct{Unit: testUnit()})
	assert.Empty(t, s.LastError)
	assert.IsType(t, RegisterSaleItem{}, effects[0])
}

func TestSavedProductCannotBeSwapped(t *testing.T) {
	s := atDetailsStep(t)
	s, _ = mustApply(t, s, Previous{})
	require.Equal(t, StepProductSelection, s.Step)

	other := testUnit()
	other.ID = 32
	_, _, err := Apply(s, SelectProduct{Unit: other})
	requireValidation(t, err)

	_, effects := mustApply(t, s, SelectProduct{Unit: testUnit()})
	assert.Equal(t, []Effect{LoadPlanConditions{FinancingPlanID: 7, BrandID: 4}}, effects)
}

func TestSelectProductRequiresPrice(t *testing.T) {
	s := atProductStep(t)
	unit := testUnit()
	unit.Price = domain.Number{}
	unit.Product.Price = domain.Number{}

	_, _, err := Apply(s, SelectProduct{Unit: unit})
	requireValidation(t, err)
}

func TestSelectProductRejectsOversizedPlan(t *testing.T) {
	s := New("wiz_1", "seller", testNow)
	s, _ = mustApply(t, s, SelectClient{ClientID: 5})
	s, _ = mustApply(t, s, SaleCreated{Sale: domain.Sale{ID: 99}})
	plan := testPlan()
	plan.Cuotas = domain.Num(financing.MaxInstallments + 1)
	s, _ = mustApply(t, s, EligibilityResolved{Verification: domain.SaleVerification{Approved: true, FinancingPlan: plan}})

	next, effects, err := Apply(s, SelectProduct{Unit: testUnit()})
	requireValidation(t, err)
	assert.Empty(t, effects)
	assert.Nil(t, next.Sale.InventoryUnit)
}

func TestOversizedConditionsKeepProductStep(t *testing.T) {
	s := atProductStep(t)
	s, _ = mustApply(t, s, SelectProduct{Unit: testUnit()})
	s, _ = mustApply(t, s, SaleItemRegistered{})

	s, _ = mustApply(t, s, PlanConditionsLoaded{
		Conditions: &domain.PlanConditions{Installments: domain.Num(5e6)},
		Today:      testNow,
	})
	assert.Equal(t, StepProductSelection, s.Step)
	assert.Nil(t, s.Sale.Breakdown)
	assert.Contains(t, s.LastError, "600")

	s, _ = mustApply(t, s, PlanConditionsLoaded{
		Conditions: &domain.PlanConditions{Installments: domain.Num(financing.MaxInstallments)},
		Today:      testNow,
	})
	assert.Equal(t, StepDetailsConfirmation, s.Step)
	require.NotNil(t, s.Sale.Breakdown)
	assert.Equal(t, financing.MaxInstallments, s.Sale.Breakdown.InstallmentCount)
}

func TestConfirmDetailsSubmitsContractAndSchedule(t *testing.T) {
	s := atDetailsStep(t)

	s, effects := mustApply(t, s, ConfirmDetails{Notes: "  cliente frecuente ", Today: testNow})
	require.Len(t, effects, 1)
	submit, ok := effects[0].(SubmitContract)
	require.True(t, ok)
	assert.Equal(t, "cliente frecuente", submit.Submission.Contract.Notes)
	assert.Equal(t, int64(7), submit.Submission.Contract.FinancingPlanID)
	require.Len(t, submit.Submission.Installments, 4)
	assert.True(t, submit.Submission.Installments[0].IsInicial)
	assert.InDelta(t, 100, submit.Submission.Installments[0].Amount, 0.001)

	s, effects = mustApply(t, s, ContractConfirmed{Contract: submit.Submission.Contract, Installments: submit.Submission.Installments})
	assert.Equal(t, StepPaymentCollection, s.Step)
	assert.True(t, s.Sale.IsStep4Completed)
	assert.Equal(t, []Effect{LoadPaymentMethods{}, LoadInitialInstallment{SaleID: 99}}, effects)
}

func TestConfirmDetailsReadsExistingContract(t *testing.T) {
	s := atDetailsStep(t)
	s.Sale.IsStep4Completed = true

	_, effects := mustApply(t, s, ConfirmDetails{Today: testNow})
	assert.Equal(t, []Effect{FetchContract{SaleID: 99}}, effects)
}

func TestPaymentFlowEnablesFinalize(t *testing.T) {
	s := atPaymentStep(t)
	assert.False(t, CanFinalize(s))

	_, _, err := Apply(s, FinalizeSale{})
	requireValidation(t, err)

	_, _, err = Apply(s, SubmitPayment{Amount: 100, PaidAt: testNow})
	requireValidation(t, err)

	_, _, err = Apply(s, SelectPaymentMethod{PaymentMethodID: 9})
	requireValidation(t, err)

	s, _ = mustApply(t, s, SelectPaymentMethod{PaymentMethodID: 2})
	_, _, err = Apply(s, SubmitPayment{Amount: 100, PaidAt: testNow})
	requireValidation(t, err)

	_, _, err = Apply(s, SubmitPayment{Amount: 150, Reference: "TX-1", PaidAt: testNow})
	requireValidation(t, err)

	s, effects := mustApply(t, s, SubmitPayment{Amount: 100, Reference: "TX-1", PaidAt: testNow})
	require.Len(t, effects, 1)
	pay := effects[0].(RegisterPayment)
	assert.Equal(t, int64(500), pay.InstallmentID)
	assert.Equal(t, "TX-1", pay.Payment.Reference)
	assert.Equal(t, "2026-03-01", pay.Payment.PaidAt.String())

	initial, _ := InitialInstallment(s.Sale)
	initial.AmountPending = domain.Num(0)
	receipt := domain.PaymentReceipt{
		Payment:     domain.Payment{ID: 800, InstallmentID: 500, PaymentMethodID: 2, Amount: 100, Reference: "TX-1"},
		Installment: initial,
	}
	s, _ = mustApply(t, s, PaymentRegistered{Receipt: receipt})
	assert.True(t, s.Sale.IsEnrollmentReady)
	assert.Zero(t, s.Sale.SelectedPaymentMethodID)
	assert.Equal(t, 1, PaymentCount(s.Sale))
	assert.True(t, CanFinalize(s))

	s, effects = mustApply(t, s, FinalizeSale{})
	assert.Equal(t, []Effect{CompleteSale{SaleID: 99}}, effects)

	s, _ = mustApply(t, s, SaleCompleted{})
	assert.Equal(t, ExitCompleted, s.Exit)
	assert.Equal(t, "/sales/99", s.RedirectTo)
	assert.True(t, s.Finished())
}

func TestPartialPaymentKeepsEnrollmentClosed(t *testing.T) {
	s := atPaymentStep(t)
	initial, _ := InitialInstallment(s.Sale)
	initial.AmountPending = domain.Num(40)

	s, _ = mustApply(t, s, PaymentRegistered{Receipt: domain.PaymentReceipt{
		Payment:     domain.Payment{ID: 801, InstallmentID: initial.ID, Amount: 60},
		Installment: initial,
	}})
	assert.False(t, s.Sale.IsEnrollmentReady)
	assert.InDelta(t, 40, PendingAmount(mustInitial(t, s)), 0.001)
}

func mustInitial(t *testing.T, s State) domain.Installment {
	t.Helper()
	inst, ok := InitialInstallment(s.Sale)
	require.True(t, ok)
	return inst
}

func TestCancelGuard(t *testing.T) {
	s := atDetailsStep(t)
	assert.True(t, CanCancel(s))

	_, _, err := Apply(s, CancelSale{Notes: "  "})
	requireValidation(t, err)

	next, effects := mustApply(t, s, CancelSale{Notes: "cliente desiste"})
	assert.Equal(t, []Effect{CancelSaleCall{SaleID: 99, Notes: "cliente desiste"}}, effects)

	next, _ = mustApply(t, next, SaleCancelled{})
	assert.Equal(t, ExitCancelled, next.Exit)
	assert.Equal(t, "/sales", next.RedirectTo)
	assert.Equal(t, int64(99), next.Sale.SaleID)
	assert.Nil(t, next.Sale.FinancingPlan)

	paid := s
	paid.Sale.Installments = []domain.Installment{{ID: 3, Number: 2, Payments: []domain.Payment{{ID: 1, Amount: 10}}}}
	assert.False(t, CanCancel(paid))
	_, _, err = Apply(paid, CancelSale{Notes: "x"})
	requireValidation(t, err)

	noPlan := New("wiz_2", "seller", testNow)
	noPlan.Step = StepLevelVerification
	assert.False(t, CanCancel(noPlan))

	assert.False(t, CanCancel(atPaymentStep(t)))
}

func TestPreviousRewindsPointerOnly(t *testing.T) {
	s := atDetailsStep(t)
	s, effects := mustApply(t, s, Previous{})
	assert.Empty(t, effects)
	assert.Equal(t, StepProductSelection, s.Step)
	assert.True(t, s.Sale.IsProductSaved)

	_, _, err := Apply(New("wiz_1", "seller", testNow), Previous{})
	requireValidation(t, err)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := atPaymentStep(t)
	before := len(s.Sale.Payments)
	initial, _ := InitialInstallment(s.Sale)
	initial.AmountPending = domain.Num(0)

	_, _ = mustApply(t, s, PaymentRegistered{Receipt: domain.PaymentReceipt{
		Payment:     domain.Payment{ID: 802, Amount: 100},
		Installment: initial,
	}})
	assert.Len(t, s.Sale.Payments, before)
	assert.False(t, s.Sale.IsEnrollmentReady)
}

func TestHydrateContractedSaleResumesAtDetails(t *testing.T) {
	unit := testUnit()
	sale := domain.Sale{
		ID:            99,
		SaleStatusID:  domain.SaleStatusContracted,
		Client:        &domain.Client{ID: 5},
		FinancingPlan: testPlan(),
		Product:       unit.Product,
		InventoryUnit: &unit,
		TotalAmount:   domain.Num(1000),
		FinancingContract: &domain.FinancingContract{
			ID: 70, SaleID: 99, FinancingPlanID: 7, TotalProductCost: 1000, DownPayment: 100,
			FinancedAmount: 900, ProcessingFee: 20, InterestAmount: 45, TotalAmountToRepay: 965,
			InstallmentCount: 3, InstallmentAmount: 300, FinalProductCost: 1065,
		},
	}

	s, effects, err := Hydrate("wiz_9", "seller", sale, testNow)
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, s.Mode)
	assert.Equal(t, StepDetailsConfirmation, s.Step)
	assert.True(t, s.Sale.IsStep4Completed)
	assert.True(t, s.Sale.IsProductSaved)
	assert.True(t, s.Sale.ProductLocked)
	require.NotNil(t, s.Sale.Breakdown)
	assert.InDelta(t, 945, s.Sale.Breakdown.TotalAmountFinanced, 0.001)
	assert.Equal(t, []Effect{LoadPlanConditions{FinancingPlanID: 7, BrandID: 4}}, effects)
	for _, eff := range effects {
		_, registers := eff.(RegisterSaleItem)
		assert.False(t, registers)
	}

	_, effects = mustApply(t, s, ConfirmDetails{Today: testNow})
	assert.Equal(t, []Effect{FetchContract{SaleID: 99}}, effects)
}

func TestResumeStepMapping(t *testing.T) {
	cases := []struct {
		status int
		step   Step
		ok     bool
	}{
		{domain.SaleStatusDraft, StepLevelVerification, true},
		{domain.SaleStatusCreated, StepLevelVerification, true},
		{domain.SaleStatusVerified, StepProductSelection, true},
		{domain.SaleStatusContracted, StepDetailsConfirmation, true},
		{domain.SaleStatusPaymentPending, StepDetailsConfirmation, true},
		{domain.SaleStatusCompleted, 0, false},
		{domain.SaleStatusCancelled, 0, false},
	}
	for _, tc := range cases {
		step, ok := ResumeStep(tc.status)
		assert.Equal(t, tc.ok, ok, "status %d", tc.status)
		assert.Equal(t, tc.step, step, "status %d", tc.status)
	}

	_, _, err := Hydrate("wiz_9", "seller", domain.Sale{ID: 1, SaleStatusID: domain.SaleStatusCompleted}, testNow)
	requireValidation(t, err)
}

func TestHydrateVerifiedSaleLocksExistingProduct(t *testing.T) {
	unit := testUnit()
	sale := domain.Sale{
		ID:            99,
		SaleStatusID:  domain.SaleStatusVerified,
		FinancingPlan: testPlan(),
		InventoryUnit: &unit,
	}

	s, effects, err := Hydrate("wiz_9", "seller", sale, testNow)
	require.NoError(t, err)
	assert.Empty(t, effects)
	assert.Equal(t, StepProductSelection, s.Step)
	assert.True(t, s.Sale.IsProductSaved)
	assert.Equal(t, 1000.0, s.Sale.TotalAmount)

	_, effects = mustApply(t, s, SelectProduct{Unit: unit})
	assert.Equal(t, []Effect{LoadPlanConditions{FinancingPlanID: 7, BrandID: 4}}, effects)
}

func TestFinishedSessionRejectsEvents(t *testing.T) {
	s := New("wiz_1", "seller", testNow)
	s.Exit = ExitCancelled
	_, _, err := Apply(s, SelectClient{ClientID: 1})
	requireValidation(t, err)
}
