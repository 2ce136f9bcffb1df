package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"saledesk/backend/internal/conditions"
	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/financing"
	"saledesk/backend/internal/store"
	"saledesk/backend/internal/wizard"
	"saledesk/backend/internal/xid"
)

var (
	ErrAdminRequired = errors.New("admin role required")
	ErrForbidden     = errors.New("session belongs to another operator")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Platform is the subset of the financing platform API the service drives.
type Platform interface {
	SearchClients(ctx context.Context, search string, limit int) ([]domain.Client, error)
	GetClient(ctx context.Context, clientID int64) (domain.Client, error)
	CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error)
	CreateSale(ctx context.Context, clientID int64) (domain.Sale, error)
	GetSale(ctx context.Context, saleID int64) (domain.Sale, error)
	VerifySale(ctx context.Context, saleID int64) (domain.SaleVerification, error)
	ListInventoryUnits(ctx context.Context, productID int64) ([]domain.InventoryUnit, error)
	GetInventoryUnit(ctx context.Context, unitID int64) (domain.InventoryUnit, error)
	RegisterSaleItem(ctx context.Context, saleID int64, item domain.SaleItemRequest) (*domain.Sale, error)
	GetPlanConditions(ctx context.Context, planID, brandID int64) (*domain.PlanConditions, error)
	GetFinancingContract(ctx context.Context, saleID int64) (domain.ContractSubmission, error)
	SubmitFinancingContract(ctx context.Context, saleID int64, submission domain.ContractSubmission) (domain.ContractSubmission, error)
	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	GetInitialInstallment(ctx context.Context, saleID int64) (domain.Installment, error)
	RegisterPayment(ctx context.Context, saleID, installmentID int64, payment domain.PaymentRequest) (domain.PaymentReceipt, error)
	CompleteSale(ctx context.Context, saleID int64) error
	CancelSale(ctx context.Context, saleID int64, notes string) error
}

type Service struct {
	repo       store.Repository
	platform   Platform
	conditions *conditions.Resolver
	locks      *keyedMutex
	now        func() time.Time
}

func New(repo store.Repository, platform Platform, resolver *conditions.Resolver) *Service {
	if resolver == nil {
		resolver = conditions.NewResolver(platform, nil, 0)
	}

	return &Service{
		repo:       repo,
		platform:   platform,
		conditions: resolver,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

func (s *Service) SearchClients(ctx context.Context, search string, limit int) ([]domain.Client, error) {
	return s.platform.SearchClients(ctx, search, limit)
}

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	req.DocumentNumber = strings.TrimSpace(req.DocumentNumber)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.DocumentNumber == "" || req.FirstName == "" || req.LastName == "" {
		return domain.Client{}, store.ErrInvalidTransaction
	}

	client, err := s.platform.CreateClient(ctx, req)
	if err != nil {
		return domain.Client{}, err
	}
	s.logAudit(ctx, "client_create", "client", fmt.Sprintf("%d", client.ID), fmt.Sprintf("document=%s", client.DocumentNumber))
	return client, nil
}

func (s *Service) ListInventoryUnits(ctx context.Context, productID int64) ([]domain.InventoryUnit, error) {
	return s.platform.ListInventoryUnits(ctx, productID)
}

// CalculateFinancing quotes a breakdown and schedule without touching any
// sale.
func (s *Service) CalculateFinancing(_ context.Context, req domain.CalculateFinancingRequest) (domain.CalculateFinancingResponse, error) {
	if req.FinancingPlan == nil {
		return domain.CalculateFinancingResponse{}, store.ErrInvalidTransaction
	}
	if req.TotalAmount <= 0 {
		return domain.CalculateFinancingResponse{}, store.ErrInvalidTransaction
	}
	if err := financing.CheckInstallments(*req.FinancingPlan, req.PlanConditions); err != nil {
		return domain.CalculateFinancingResponse{}, &wizard.ValidationError{
			Message: fmt.Sprintf("El plan de financiamiento excede el máximo de %d cuotas", financing.MaxInstallments),
		}
	}

	today := s.now()
	breakdown := financing.Calculate(req.TotalAmount, req.FinancingPlan, req.PlanConditions, req.CreditAvailable, today)
	return domain.CalculateFinancingResponse{
		Breakdown:    breakdown,
		Installments: financing.BuildSchedule(breakdown, today),
	}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return nil, ErrAdminRequired
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
