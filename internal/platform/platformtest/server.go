// Package platformtest runs an in-process financing platform for tests. It
// keeps sales, inventory and installments in memory and lets a test force any
// route to fail.
package platformtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"saledesk/backend/internal/domain"
)

const Token = "platform-test-token"

type Failure struct {
	Status int
	Body   any
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	nextID      int64
	clients     map[int64]domain.Client
	sales       map[int64]*domain.Sale
	units       map[int64]domain.InventoryUnit
	plan        domain.FinancingPlan
	conditions  []domain.PlanConditions
	methods     []domain.PaymentMethod
	rejectWith  string
	failures    map[string]Failure
	calls       []string
	lastPayload map[string]json.RawMessage
}

// New starts a server seeded with one client, one plan (3 installments, 10%
// down, 2% fee, 5% interest) and two available units of a 1000 product.
func New() *Server {
	s := &Server{
		nextID:      1000,
		clients:     make(map[int64]domain.Client),
		sales:       make(map[int64]*domain.Sale),
		units:       make(map[int64]domain.InventoryUnit),
		failures:    make(map[string]Failure),
		lastPayload: make(map[string]json.RawMessage),
	}
	s.clients[5] = domain.Client{ID: 5, DocumentNumber: "001-0101-0001A", FirstName: "Ana", LastName: "López", CreditAvailable: domain.Num(5000)}
	s.plan = domain.FinancingPlan{
		ID:                 7,
		Name:               "Plan 3 cuotas",
		Cuotas:             domain.Num(3),
		MinDownPaymentRate: domain.Num(10),
		ProcessingFeeRate:  domain.Num(2),
		InterestRate:       domain.Num(5),
		MaxFinancingAmount: domain.Num(10000),
	}
	product := domain.Product{ID: 11, Name: "Phone X", BrandID: 4, BrandName: "Acme", Price: domain.Num(1000)}
	for _, id := range []int64{31, 32} {
		p := product
		s.units[id] = domain.InventoryUnit{ID: id, ProductID: 11, SerialNumber: fmt.Sprintf("SN-%d", id), Status: "available", Price: domain.Num(1000), Product: &p}
	}
	s.methods = []domain.PaymentMethod{
		{ID: 1, Name: "Efectivo"},
		{ID: 2, Name: "Transferencia", RequiresReference: true},
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /clients", s.searchClients)
	s.route(mux, "GET /clients/{id}", s.getClient)
	s.route(mux, "POST /clients", s.createClient)
	s.route(mux, "POST /sales", s.createSale)
	s.route(mux, "GET /sales/{id}", s.getSale)
	s.route(mux, "POST /sales/{id}/verify", s.verifySale)
	s.route(mux, "GET /inventory-units", s.listUnits)
	s.route(mux, "GET /inventory-units/{id}", s.getUnit)
	s.route(mux, "POST /sales/{id}/items", s.registerItem)
	s.route(mux, "GET /plan-conditions", s.planConditions)
	s.route(mux, "GET /sales/{id}/financing-contract", s.getContract)
	s.route(mux, "POST /sales/{id}/financing-contract", s.submitContract)
	s.route(mux, "GET /payment-methods", s.paymentMethods)
	s.route(mux, "GET /sales/{id}/installments/initial", s.initialInstallment)
	s.route(mux, "POST /sales/{id}/installments/{installment}/payments", s.registerPayment)
	s.route(mux, "POST /sales/{id}/complete", s.completeSale)
	s.route(mux, "POST /sales/{id}/cancel", s.cancelSale)

	s.Server = httptest.NewServer(mux)
	return s
}

// Fail makes every later call to route answer with status and body. route is
// the pattern used to register it, e.g. "POST /sales/{id}/items".
func (s *Server) Fail(route string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = Failure{Status: status, Body: body}
}

func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// RejectVerification makes eligibility checks answer with a rejection.
func (s *Server) RejectVerification(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectWith = reason
}

func (s *Server) SetConditions(conditions ...domain.PlanConditions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conditions = append([]domain.PlanConditions(nil), conditions...)
}

// PutSale stores sale as-is, for resume scenarios.
func (s *Server) PutSale(sale domain.Sale) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := sale
	s.sales[sale.ID] = &copied
}

func (s *Server) Sale(id int64) (domain.Sale, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok {
		return domain.Sale{}, false
	}
	return *sale, true
}

func (s *Server) Plan() domain.FinancingPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Calls lists the routes hit so far, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) CallCount(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, call := range s.calls {
		if call == route {
			count++
		}
	}
	return count
}

// LastPayload returns the most recent request body sent to route.
func (s *Server) LastPayload(route string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPayload[route]
}

func (s *Server) route(mux *http.ServeMux, pattern string, handler func(w http.ResponseWriter, r *http.Request) (any, int)) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}

		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.calls = append(s.calls, pattern)
		if len(body) > 0 {
			s.lastPayload[pattern] = body
		}
		failure, failing := s.failures[pattern]
		if failing {
			s.mu.Unlock()
			writeJSON(w, failure.Status, failure.Body)
			return
		}
		payload, status := handler(w, r)
		writeJSON(w, status, payload)
		s.mu.Unlock()
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func ok(data any) (any, int) {
	return map[string]any{"success": true, "data": data}, http.StatusOK
}

func notFound(what string) (any, int) {
	return map[string]any{"message": what + " no encontrado"}, http.StatusNotFound
}

func unprocessable(field, message string) (any, int) {
	return map[string]any{
		"message": "",
		"errors":  map[string][]string{field: {message}},
	}, http.StatusUnprocessableEntity
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// handlers below run with s.mu held.

func (s *Server) searchClients(_ http.ResponseWriter, r *http.Request) (any, int) {
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		haystack := strings.ToLower(c.FirstName + " " + c.LastName + " " + c.DocumentNumber)
		if search == "" || strings.Contains(haystack, search) {
			out = append(out, c)
		}
	}
	return out, http.StatusOK
}

func (s *Server) getClient(_ http.ResponseWriter, r *http.Request) (any, int) {
	c, found := s.clients[pathID(r, "id")]
	if !found {
		return notFound("Cliente")
	}
	return c, http.StatusOK
}

func (s *Server) createClient(_ http.ResponseWriter, r *http.Request) (any, int) {
	var req domain.ClientCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return unprocessable("body", "JSON inválido")
	}
	if strings.TrimSpace(req.DocumentNumber) == "" {
		return unprocessable("document_number", "El número de documento es obligatorio.")
	}
	c := domain.Client{
		ID:              s.id(),
		DocumentTypeID:  req.DocumentTypeID,
		DocumentNumber:  req.DocumentNumber,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		CreditAvailable: domain.Num(0),
	}
	s.clients[c.ID] = c
	return c, http.StatusCreated
}

func (s *Server) createSale(_ http.ResponseWriter, r *http.Request) (any, int) {
	var req struct {
		ClientID int64 `json:"client_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	c, found := s.clients[req.ClientID]
	if !found {
		return unprocessable("client_id", "El cliente seleccionado no existe.")
	}
	sale := &domain.Sale{ID: s.id(), SaleStatusID: domain.SaleStatusCreated, Client: &c}
	s.sales[sale.ID] = sale
	return ok(sale)
}

func (s *Server) getSale(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	return ok(sale)
}

func (s *Server) verifySale(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	if s.rejectWith != "" {
		return ok(domain.SaleVerification{Approved: false, Reason: s.rejectWith})
	}
	plan := s.plan
	sale.FinancingPlan = &plan
	sale.SaleStatusID = domain.SaleStatusVerified
	return ok(domain.SaleVerification{Approved: true, FinancingPlan: &plan})
}

func (s *Server) listUnits(_ http.ResponseWriter, r *http.Request) (any, int) {
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	out := make([]domain.InventoryUnit, 0, len(s.units))
	for _, u := range s.units {
		if u.Status != "available" {
			continue
		}
		if productID > 0 && u.ProductID != productID {
			continue
		}
		out = append(out, u)
	}
	return ok(out)
}

func (s *Server) getUnit(_ http.ResponseWriter, r *http.Request) (any, int) {
	u, found := s.units[pathID(r, "id")]
	if !found {
		return notFound("Unidad")
	}
	return u, http.StatusOK
}

func (s *Server) registerItem(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	var req domain.SaleItemRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	unit, found := s.units[req.InventoryUnitID]
	if !found || unit.Status != "available" {
		return unprocessable("inventory_unit_id", "La unidad no está disponible.")
	}
	unit.Status = "reserved"
	s.units[unit.ID] = unit
	copied := unit
	sale.InventoryUnit = &copied
	sale.Product = unit.Product
	sale.TotalAmount = domain.Num(req.Amount)
	return ok(sale)
}

func (s *Server) planConditions(_ http.ResponseWriter, _ *http.Request) (any, int) {
	return ok(s.conditions)
}

func (s *Server) getContract(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	if sale.FinancingContract == nil {
		return notFound("Contrato")
	}
	return ok(domain.ContractSubmission{Contract: *sale.FinancingContract, Installments: sale.Installments})
}

func (s *Server) submitContract(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	if sale.FinancingContract != nil {
		return map[string]any{"status": "error", "message": "La venta ya tiene un contrato de financiamiento."}, http.StatusOK
	}
	var req domain.ContractSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return unprocessable("contract", "Contrato inválido")
	}
	contract := req.Contract
	contract.ID = s.id()
	contract.SaleID = sale.ID
	installments := make([]domain.Installment, 0, len(req.Installments))
	for _, inst := range req.Installments {
		inst.ID = s.id()
		inst.SaleID = sale.ID
		inst.AmountPending = domain.Num(inst.Amount)
		installments = append(installments, inst)
	}
	sale.FinancingContract = &contract
	sale.Installments = installments
	sale.Notes = contract.Notes
	sale.SaleStatusID = domain.SaleStatusContracted
	return ok(domain.ContractSubmission{Contract: contract, Installments: installments})
}

func (s *Server) paymentMethods(_ http.ResponseWriter, _ *http.Request) (any, int) {
	return s.methods, http.StatusOK
}

func (s *Server) initialInstallment(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	for _, inst := range sale.Installments {
		if inst.IsInicial {
			return ok(inst)
		}
	}
	return notFound("Cuota inicial")
}

func (s *Server) registerPayment(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	installmentID := pathID(r, "installment")
	var req domain.PaymentRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	for i := range sale.Installments {
		inst := &sale.Installments[i]
		if inst.ID != installmentID {
			continue
		}
		pending := inst.AmountPending.Or(inst.Amount)
		if req.Amount-pending > 0.001 {
			return unprocessable("amount", "El monto excede el saldo pendiente.")
		}
		paidAt := req.PaidAt
		if paidAt.IsZero() {
			paidAt = domain.NewDate(time.Now())
		}
		payment := domain.Payment{
			ID:              s.id(),
			InstallmentID:   inst.ID,
			PaymentMethodID: req.PaymentMethodID,
			Amount:          req.Amount,
			Reference:       req.Reference,
			PaidAt:          paidAt,
		}
		inst.Payments = append(inst.Payments, payment)
		inst.AmountPending = domain.Num(math.Max(math.Round((pending-req.Amount)*1000)/1000, 0))
		sale.SaleStatusID = domain.SaleStatusPaymentPending
		return ok(domain.PaymentReceipt{Payment: payment, Installment: *inst})
	}
	return notFound("Cuota")
}

func (s *Server) completeSale(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	sale.SaleStatusID = domain.SaleStatusCompleted
	return ok(sale)
}

func (s *Server) cancelSale(_ http.ResponseWriter, r *http.Request) (any, int) {
	sale, found := s.sales[pathID(r, "id")]
	if !found {
		return notFound("Venta")
	}
	var req struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if strings.TrimSpace(req.Notes) == "" {
		return unprocessable("notes", "El motivo es obligatorio.")
	}
	sale.SaleStatusID = domain.SaleStatusCancelled
	sale.Notes = req.Notes
	if sale.InventoryUnit != nil {
		if unit, found := s.units[sale.InventoryUnit.ID]; found {
			unit.Status = "available"
			s.units[unit.ID] = unit
		}
	}
	return ok(map[string]any{"id": sale.ID, "sale_status_id": sale.SaleStatusID})
}
