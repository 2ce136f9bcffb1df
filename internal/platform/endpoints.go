package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"saledesk/backend/internal/domain"
)

func (c *Client) SearchClients(ctx context.Context, search string, limit int) ([]domain.Client, error) {
	query := url.Values{}
	if search = strings.TrimSpace(search); search != "" {
		query.Set("search", search)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var clients []domain.Client
	if err := c.do(ctx, http.MethodGet, "/clients", query, nil, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func (c *Client) GetClient(ctx context.Context, clientID int64) (domain.Client, error) {
	var client domain.Client
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/clients/%d", clientID), nil, nil, &client)
	return client, err
}

func (c *Client) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	var client domain.Client
	err := c.do(ctx, http.MethodPost, "/clients", nil, req, &client)
	return client, err
}

func (c *Client) CreateSale(ctx context.Context, clientID int64) (domain.Sale, error) {
	var sale domain.Sale
	err := c.do(ctx, http.MethodPost, "/sales", nil, map[string]int64{"client_id": clientID}, &sale)
	return sale, err
}

func (c *Client) GetSale(ctx context.Context, saleID int64) (domain.Sale, error) {
	var sale domain.Sale
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sales/%d", saleID), nil, nil, &sale)
	return sale, err
}

// VerifySale runs the platform's eligibility check. A rejection is a normal
// answer (Approved false), not an error.
func (c *Client) VerifySale(ctx context.Context, saleID int64) (domain.SaleVerification, error) {
	var verification domain.SaleVerification
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sales/%d/verify", saleID), nil, struct{}{}, &verification)
	return verification, err
}

func (c *Client) ListInventoryUnits(ctx context.Context, productID int64) ([]domain.InventoryUnit, error) {
	query := url.Values{"status": []string{"available"}}
	if productID > 0 {
		query.Set("product_id", strconv.FormatInt(productID, 10))
	}
	var units []domain.InventoryUnit
	if err := c.do(ctx, http.MethodGet, "/inventory-units", query, nil, &units); err != nil {
		return nil, err
	}
	return units, nil
}

func (c *Client) GetInventoryUnit(ctx context.Context, unitID int64) (domain.InventoryUnit, error) {
	var unit domain.InventoryUnit
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/inventory-units/%d", unitID), nil, nil, &unit)
	return unit, err
}

func (c *Client) RegisterSaleItem(ctx context.Context, saleID int64, item domain.SaleItemRequest) (*domain.Sale, error) {
	var sale domain.Sale
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sales/%d/items", saleID), nil, item, &sale); err != nil {
		return nil, err
	}
	if sale.ID == 0 {
		return nil, nil
	}
	return &sale, nil
}

// GetPlanConditions returns nil when the plan has no overrides for the brand.
func (c *Client) GetPlanConditions(ctx context.Context, planID, brandID int64) (*domain.PlanConditions, error) {
	query := url.Values{}
	query.Set("financing_plan_id", strconv.FormatInt(planID, 10))
	query.Set("brand_id", strconv.FormatInt(brandID, 10))

	var conditions []domain.PlanConditions
	if err := c.do(ctx, http.MethodGet, "/plan-conditions", query, nil, &conditions); err != nil {
		if NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, cond := range conditions {
		if cond.FinancingPlanID == planID && cond.BrandID == brandID {
			found := cond
			return &found, nil
		}
	}
	return nil, nil
}

func (c *Client) GetFinancingContract(ctx context.Context, saleID int64) (domain.ContractSubmission, error) {
	var contract domain.ContractSubmission
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sales/%d/financing-contract", saleID), nil, nil, &contract)
	return contract, err
}

func (c *Client) SubmitFinancingContract(ctx context.Context, saleID int64, submission domain.ContractSubmission) (domain.ContractSubmission, error) {
	var confirmed domain.ContractSubmission
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/sales/%d/financing-contract", saleID), nil, submission, &confirmed)
	return confirmed, err
}

func (c *Client) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	var methods []domain.PaymentMethod
	if err := c.do(ctx, http.MethodGet, "/payment-methods", nil, nil, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (c *Client) GetInitialInstallment(ctx context.Context, saleID int64) (domain.Installment, error) {
	var inst domain.Installment
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sales/%d/installments/initial", saleID), nil, nil, &inst)
	return inst, err
}

func (c *Client) RegisterPayment(ctx context.Context, saleID, installmentID int64, payment domain.PaymentRequest) (domain.PaymentReceipt, error) {
	var receipt domain.PaymentReceipt
	path := fmt.Sprintf("/sales/%d/installments/%d/payments", saleID, installmentID)
	err := c.do(ctx, http.MethodPost, path, nil, payment, &receipt)
	return receipt, err
}

func (c *Client) CompleteSale(ctx context.Context, saleID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/sales/%d/complete", saleID), nil, struct{}{}, nil)
}

func (c *Client) CancelSale(ctx context.Context, saleID int64, notes string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/sales/%d/cancel", saleID), nil, map[string]string{"notes": notes}, nil)
}
