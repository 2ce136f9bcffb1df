package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/platform"
	"saledesk/backend/internal/store"
	"saledesk/backend/internal/wizard"
	"saledesk/backend/internal/xid"
)

// WizardView is a session as the operator sees it, with the actions that are
// currently on offer.
type WizardView struct {
	wizard.State
	CanCancel   bool `json:"can_cancel"`
	CanFinalize bool `json:"can_finalize"`
	Closed      bool `json:"closed"`
}

func newView(s wizard.State) WizardView {
	return WizardView{
		State:       s,
		CanCancel:   wizard.CanCancel(s),
		CanFinalize: wizard.CanFinalize(s),
		Closed:      s.Finished(),
	}
}

func (s *Service) StartWizard(ctx context.Context) (WizardView, error) {
	actor := currentActor(ctx)
	session := wizard.New(xid.New("wiz"), actor.Username, s.now())

	created, err := s.repo.CreateSession(ctx, session)
	if err != nil {
		return WizardView{}, err
	}
	return newView(*created), nil
}

// ResumeWizard opens a persisted sale in edit mode. An open session for the
// same sale is returned as is when it belongs to the caller.
func (s *Service) ResumeWizard(ctx context.Context, saleID int64) (WizardView, error) {
	if saleID <= 0 {
		return WizardView{}, store.ErrInvalidTransaction
	}
	actor := currentActor(ctx)

	unlock := s.locks.Lock(fmt.Sprintf("sale:%d", saleID))
	defer unlock()

	existing, err := s.repo.FindSessionBySale(ctx, saleID)
	switch {
	case err == nil:
		if !canAccess(actor, *existing) {
			return WizardView{}, store.ErrConflict
		}
		return newView(*existing), nil
	case !errors.Is(err, store.ErrNotFound):
		return WizardView{}, err
	}

	sale, err := s.platform.GetSale(ctx, saleID)
	if err != nil {
		return WizardView{}, err
	}

	session, effects, err := wizard.Hydrate(xid.New("wiz"), actor.Username, sale, s.now())
	if err != nil {
		return WizardView{}, err
	}
	work := context.WithoutCancel(ctx)
	session = s.drain(work, session, effects)

	created, err := s.repo.CreateSession(work, session)
	if err != nil {
		return WizardView{}, err
	}
	s.logAudit(work, "sale_resume", "sale", fmt.Sprintf("%d", saleID), fmt.Sprintf("step=%s", created.StepName))
	return newView(*created), nil
}

func (s *Service) GetWizard(ctx context.Context, id string) (WizardView, error) {
	session, err := s.loadOwned(ctx, id)
	if err != nil {
		return WizardView{}, err
	}
	return newView(*session), nil
}

func (s *Service) ListWizards(ctx context.Context, limit int) ([]WizardView, error) {
	actor := currentActor(ctx)
	operator := actor.Username
	if actor.Role == domain.RoleAdmin {
		operator = ""
	}

	sessions, err := s.repo.ListSessions(ctx, operator, limit)
	if err != nil {
		return nil, err
	}
	views := make([]WizardView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, newView(session))
	}
	return views, nil
}

func (s *Service) SelectClient(ctx context.Context, id string, req domain.SelectClientRequest) (WizardView, error) {
	return s.Dispatch(ctx, id, wizard.SelectClient{ClientID: req.ClientID})
}

func (s *Service) VerifyLevel(ctx context.Context, id string) (WizardView, error) {
	return s.Dispatch(ctx, id, wizard.VerifyLevel{})
}

// SelectProduct looks the unit up on the platform so price and brand come
// from the inventory rather than from the caller.
func (s *Service) SelectProduct(ctx context.Context, id string, req domain.SelectProductRequest) (WizardView, error) {
	if req.InventoryUnitID <= 0 {
		return WizardView{}, &wizard.ValidationError{Message: "Seleccione una unidad de inventario"}
	}
	unit, err := s.platform.GetInventoryUnit(ctx, req.InventoryUnitID)
	if err != nil {
		return WizardView{}, err
	}
	return s.Dispatch(ctx, id, wizard.SelectProduct{Unit: unit})
}

func (s *Service) ConfirmDetails(ctx context.Context, id string, req domain.ConfirmDetailsRequest) (WizardView, error) {
	return s.Dispatch(ctx, id, wizard.ConfirmDetails{Notes: req.Notes, Today: s.now()})
}

func (s *Service) SelectPaymentMethod(ctx context.Context, id string, req domain.SelectPaymentMethodRequest) (WizardView, error) {
	return s.Dispatch(ctx, id, wizard.SelectPaymentMethod{PaymentMethodID: req.PaymentMethodID})
}

func (s *Service) SubmitPayment(ctx context.Context, id string, req domain.SubmitPaymentRequest) (WizardView, error) {
	paidAt := s.now()
	if raw := strings.TrimSpace(req.PaidAt); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return WizardView{}, &wizard.ValidationError{Message: "La fecha de pago no es válida"}
		}
		paidAt = parsed
	}
	return s.Dispatch(ctx, id, wizard.SubmitPayment{
		Amount:    req.Amount,
		Reference: req.Reference,
		PaidAt:    paidAt,
	})
}

func (s *Service) Finalize(ctx context.Context, id string) (WizardView, error) {
	return s.Dispatch(ctx, id, wizard.FinalizeSale{})
}

func (s *Service) Previous(ctx context.Context, id string) (WizardView, error) {
	return s.Dispatch(ctx, id, wizard.Previous{})
}

func (s *Service) Cancel(ctx context.Context, id string, req domain.CancelSaleRequest) (WizardView, error) {
	return s.Dispatch(ctx, id, wizard.CancelSale{Notes: req.Notes})
}

// Dispatch applies one operator event to a session, performs every platform
// call the transition asks for and persists the result. A failed platform
// call is recorded on the session as LastError; it is not returned.
//
// Once the event is accepted the platform calls and the save run detached
// from the caller's cancellation: a call that committed on the platform must
// be persisted even if the operator has gone away. Each call is still bounded
// by the platform client's timeout.
func (s *Service) Dispatch(ctx context.Context, id string, ev wizard.Event) (WizardView, error) {
	unlock := s.locks.Lock("wizard:" + id)
	defer unlock()

	session, err := s.loadOwned(ctx, id)
	if err != nil {
		return WizardView{}, err
	}

	next, effects, err := wizard.Apply(*session, ev)
	if err != nil {
		return WizardView{}, err
	}
	work := context.WithoutCancel(ctx)
	next = s.drain(work, next, effects)
	next.UpdatedAt = s.now().UTC()

	if next.Finished() {
		if err := s.repo.DeleteSession(work, next.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return WizardView{}, err
		}
		return newView(next), nil
	}

	saved, err := s.repo.SaveSession(work, next)
	if err != nil {
		return WizardView{}, err
	}
	return newView(*saved), nil
}

// drain performs effects in order, feeding each outcome back into the state
// machine. Outcomes may enqueue further effects.
func (s *Service) drain(ctx context.Context, session wizard.State, effects []wizard.Effect) wizard.State {
	queue := append([]wizard.Effect(nil), effects...)
	for len(queue) > 0 {
		effect := queue[0]
		queue = queue[1:]

		outcome, err := s.perform(ctx, session, effect)
		if err != nil {
			log.Printf("[wizard] WARN: session=%s effect=%T failed: %v", session.ID, effect, err)
			outcome = wizard.EffectFailed{Effect: effect, Message: platform.UserMessage(err)}
		}

		next, more, err := wizard.Apply(session, outcome)
		if err != nil {
			log.Printf("[wizard] ERROR: session=%s outcome=%T rejected: %v", session.ID, outcome, err)
			continue
		}
		s.auditOutcome(ctx, next, outcome)
		session = next
		queue = append(queue, more...)
	}
	return session
}

func (s *Service) perform(ctx context.Context, session wizard.State, effect wizard.Effect) (wizard.Event, error) {
	switch e := effect.(type) {
	case wizard.CreateSale:
		sale, err := s.platform.CreateSale(ctx, e.ClientID)
		if err != nil {
			return nil, err
		}
		if sale.Client == nil {
			client, err := s.platform.GetClient(ctx, e.ClientID)
			if err != nil {
				return nil, err
			}
			sale.Client = &client
		}
		return wizard.SaleCreated{Sale: sale}, nil

	case wizard.VerifyEligibility:
		verification, err := s.platform.VerifySale(ctx, e.SaleID)
		if err != nil {
			return nil, err
		}
		return wizard.EligibilityResolved{Verification: verification}, nil

	case wizard.RegisterSaleItem:
		sale, err := s.platform.RegisterSaleItem(ctx, e.SaleID, e.Item)
		if err != nil {
			return nil, err
		}
		return wizard.SaleItemRegistered{Sale: sale}, nil

	case wizard.LoadPlanConditions:
		found, err := s.conditions.Resolve(ctx, e.FinancingPlanID, e.BrandID)
		if err != nil {
			return nil, err
		}
		return wizard.PlanConditionsLoaded{Conditions: found, Today: s.now()}, nil

	case wizard.FetchContract:
		contract, err := s.platform.GetFinancingContract(ctx, e.SaleID)
		if err != nil {
			return nil, err
		}
		return wizard.ContractConfirmed{Contract: contract.Contract, Installments: contract.Installments}, nil

	case wizard.SubmitContract:
		confirmed, err := s.platform.SubmitFinancingContract(ctx, e.SaleID, e.Submission)
		if err != nil {
			return nil, err
		}
		if confirmed.Contract.SaleID == 0 && confirmed.Contract.FinancingPlanID == 0 {
			confirmed.Contract = e.Submission.Contract
		}
		if len(confirmed.Installments) == 0 {
			confirmed.Installments = e.Submission.Installments
		}
		return wizard.ContractConfirmed{Contract: confirmed.Contract, Installments: confirmed.Installments}, nil

	case wizard.LoadPaymentMethods:
		methods, err := s.platform.ListPaymentMethods(ctx)
		if err != nil {
			return nil, err
		}
		return wizard.PaymentMethodsLoaded{Methods: methods}, nil

	case wizard.LoadInitialInstallment:
		inst, err := s.platform.GetInitialInstallment(ctx, e.SaleID)
		if err != nil {
			return nil, err
		}
		return wizard.InitialInstallmentLoaded{Installment: inst}, nil

	case wizard.RegisterPayment:
		receipt, err := s.platform.RegisterPayment(ctx, e.SaleID, e.InstallmentID, e.Payment)
		if err != nil {
			return nil, err
		}
		if receipt.Payment.InstallmentID == 0 {
			receipt.Payment.InstallmentID = e.InstallmentID
		}
		if receipt.Payment.Amount == 0 {
			receipt.Payment.Amount = e.Payment.Amount
			receipt.Payment.PaymentMethodID = e.Payment.PaymentMethodID
			receipt.Payment.Reference = e.Payment.Reference
			receipt.Payment.PaidAt = e.Payment.PaidAt
		}
		return wizard.PaymentRegistered{Receipt: receipt}, nil

	case wizard.CompleteSale:
		if err := s.platform.CompleteSale(ctx, e.SaleID); err != nil {
			return nil, err
		}
		return wizard.SaleCompleted{}, nil

	case wizard.CancelSaleCall:
		if err := s.platform.CancelSale(ctx, e.SaleID, e.Notes); err != nil {
			return nil, err
		}
		return wizard.SaleCancelled{}, nil
	}

	return nil, fmt.Errorf("session %s: unsupported effect %T", session.ID, effect)
}

func (s *Service) auditOutcome(ctx context.Context, session wizard.State, outcome wizard.Event) {
	saleID := fmt.Sprintf("%d", session.Sale.SaleID)
	switch e := outcome.(type) {
	case wizard.SaleCreated:
		clientID := int64(0)
		if session.Sale.Client != nil {
			clientID = session.Sale.Client.ID
		}
		s.logAudit(ctx, "sale_create", "sale", saleID, fmt.Sprintf("client=%d", clientID))
	case wizard.EligibilityResolved:
		if !e.Verification.Approved {
			s.logAudit(ctx, "sale_reject", "sale", saleID, e.Verification.Reason)
		}
	case wizard.SaleItemRegistered:
		unitID := int64(0)
		if session.Sale.InventoryUnit != nil {
			unitID = session.Sale.InventoryUnit.ID
		}
		s.logAudit(ctx, "sale_item_register", "sale", saleID, fmt.Sprintf("unit=%d total=%.3f", unitID, session.Sale.TotalAmount))
	case wizard.ContractConfirmed:
		s.logAudit(ctx, "contract_submit", "sale", saleID, fmt.Sprintf("installments=%d", len(session.Sale.Installments)))
	case wizard.PaymentRegistered:
		s.logAudit(ctx, "payment_register", "sale", saleID, fmt.Sprintf("installment=%d amount=%.3f", e.Receipt.Payment.InstallmentID, e.Receipt.Payment.Amount))
	case wizard.SaleCompleted:
		s.logAudit(ctx, "sale_complete", "sale", saleID, "")
	case wizard.SaleCancelled:
		s.logAudit(ctx, "sale_cancel", "sale", saleID, "")
	}
}

func (s *Service) loadOwned(ctx context.Context, id string) (*wizard.State, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(currentActor(ctx), *session) {
		return nil, ErrForbidden
	}
	return session, nil
}

func canAccess(actor domain.Actor, session wizard.State) bool {
	return actor.Role == domain.RoleAdmin || session.Operator == actor.Username
}

func currentActor(ctx context.Context) domain.Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.Username) == "" {
		return domain.Actor{Username: "system", Role: "system"}
	}
	return actor
}
