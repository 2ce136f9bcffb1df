package platform_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/platform"
	"saledesk/backend/internal/platform/platformtest"
)

func newClient(t *testing.T, baseURL string, token string) *platform.Client {
	t.Helper()
	client, err := platform.NewClient(baseURL, platform.StaticToken(token), 5*time.Second)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAbsoluteURL(t *testing.T) {
	_, err := platform.NewClient("/api", nil, 0)
	require.Error(t, err)

	_, err = platform.NewClient("https://platform.example.com/api/", nil, 0)
	require.NoError(t, err)
}

func TestClientSaleLifecycleAgainstFakePlatform(t *testing.T) {
	srv := platformtest.New()
	defer srv.Close()
	client := newClient(t, srv.URL, platformtest.Token)
	ctx := context.Background()

	clients, err := client.SearchClients(ctx, "ana", 10)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.InDelta(t, 5000, clients[0].CreditAvailable.Or(0), 0.001)

	sale, err := client.CreateSale(ctx, 5)
	require.NoError(t, err)
	require.NotZero(t, sale.ID)
	assert.Equal(t, domain.SaleStatusCreated, sale.SaleStatusID)

	verification, err := client.VerifySale(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, verification.Approved)
	require.NotNil(t, verification.FinancingPlan)
	assert.Equal(t, int64(7), verification.FinancingPlan.ID)

	units, err := client.ListInventoryUnits(ctx, 11)
	require.NoError(t, err)
	require.Len(t, units, 2)

	saved, err := client.RegisterSaleItem(ctx, sale.ID, domain.SaleItemRequest{ProductID: 11, InventoryUnitID: 31, Amount: 1000})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.InDelta(t, 1000, saved.TotalAmount.Or(0), 0.001)

	conditions, err := client.GetPlanConditions(ctx, 7, 4)
	require.NoError(t, err)
	assert.Nil(t, conditions)

	methods, err := client.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 2)

	require.NoError(t, client.CancelSale(ctx, sale.ID, "cliente desiste"))
	stored, found := srv.Sale(sale.ID)
	require.True(t, found)
	assert.Equal(t, domain.SaleStatusCancelled, stored.SaleStatusID)
}

func TestClientReturnsMatchingPlanConditions(t *testing.T) {
	srv := platformtest.New()
	defer srv.Close()
	srv.SetConditions(
		domain.PlanConditions{ID: 1, FinancingPlanID: 7, BrandID: 9, Installments: domain.Num(6)},
		domain.PlanConditions{ID: 2, FinancingPlanID: 7, BrandID: 4, Installments: domain.Num(4), CreditLimit: domain.Num(500)},
	)
	client := newClient(t, srv.URL, platformtest.Token)

	conditions, err := client.GetPlanConditions(context.Background(), 7, 4)
	require.NoError(t, err)
	require.NotNil(t, conditions)
	assert.Equal(t, int64(2), conditions.ID)
	assert.InDelta(t, 500, conditions.CreditLimit.Or(0), 0.001)
}

func TestClientMapsStatusToFriendlyMessage(t *testing.T) {
	srv := platformtest.New()
	defer srv.Close()
	client := newClient(t, srv.URL, "wrong-token")

	_, err := client.GetSale(context.Background(), 1)
	var apiErr *platform.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, platform.FriendlyMessage(http.StatusUnauthorized), apiErr.FriendlyMessage)
	assert.Equal(t, "Unauthenticated.", platform.UserMessage(err))
}

func TestClientFlattensValidationErrors(t *testing.T) {
	srv := platformtest.New()
	defer srv.Close()
	srv.Fail("POST /sales/{id}/items", http.StatusUnprocessableEntity, map[string]any{
		"errors": map[string]any{
			"inventory_unit_id": []string{"La unidad no está disponible."},
			"amount":            "El monto es obligatorio.",
		},
	})
	client := newClient(t, srv.URL, platformtest.Token)

	_, err := client.RegisterSaleItem(context.Background(), 1, domain.SaleItemRequest{})
	require.Error(t, err)
	assert.Equal(t, "El monto es obligatorio.; La unidad no está disponible.", platform.UserMessage(err))
}

func TestClientTreatsEnvelopeFailureAsError(t *testing.T) {
	srv := platformtest.New()
	defer srv.Close()
	srv.Fail("POST /sales/{id}/complete", http.StatusOK, map[string]any{"success": false, "message": "La cuota inicial no está pagada"})
	srv.Fail("POST /sales/{id}/cancel", http.StatusOK, map[string]any{"status": "error"})
	client := newClient(t, srv.URL, platformtest.Token)

	err := client.CompleteSale(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "La cuota inicial no está pagada", platform.UserMessage(err))

	err = client.CancelSale(context.Background(), 1, "x")
	require.Error(t, err)
	assert.Equal(t, platform.FriendlyMessage(http.StatusOK), platform.UserMessage(err))
}

func TestClientNotFoundPlanConditionsIsEmpty(t *testing.T) {
	srv := platformtest.New()
	defer srv.Close()
	srv.Fail("GET /plan-conditions", http.StatusNotFound, map[string]string{"message": "sin condiciones"})
	client := newClient(t, srv.URL, platformtest.Token)

	conditions, err := client.GetPlanConditions(context.Background(), 7, 4)
	require.NoError(t, err)
	assert.Nil(t, conditions)
}

func TestClientNetworkFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	baseURL := dead.URL
	dead.Close()
	client := newClient(t, baseURL, "token")

	_, err := client.ListPaymentMethods(context.Background())
	var apiErr *platform.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Network)
	assert.Equal(t, platform.NetworkMessage, platform.UserMessage(err))
}

func TestFriendlyMessageTable(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 408, 429, 500, 502, 503, 504} {
		assert.NotEqual(t, fmt.Sprintf("Error %d", status), platform.FriendlyMessage(status))
	}
	assert.Equal(t, "Error 418", platform.FriendlyMessage(418))
}

func TestUserMessageFallbacks(t *testing.T) {
	assert.Equal(t, "", platform.UserMessage(nil))
	assert.Equal(t, platform.GenericMessage, platform.UserMessage(errors.New("boom")))
	assert.Equal(t, platform.FriendlyMessage(503), platform.UserMessage(&platform.APIError{Status: 503, FriendlyMessage: platform.FriendlyMessage(503)}))
	assert.Equal(t, platform.GenericMessage, platform.UserMessage(&platform.APIError{Status: 503}))
}
