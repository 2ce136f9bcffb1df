package domain

import "time"

type FinancingPlan struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description,omitempty"`
	Cuotas               Number `json:"cuotas"`
	MinDownPaymentRate   Number `json:"min_down_payment_rate"`
	MinDownPaymentFixed  Number `json:"min_down_payment_fixed"`
	ProcessingFeeRate    Number `json:"processing_fee_rate"`
	ProcessingFeeFixed   Number `json:"processing_fee_fixed"`
	InterestRate         Number `json:"interest_rate"`
	MaxFinancingAmount   Number `json:"max_financing_amount"`
	BlockPenaltyRate     Number `json:"block_penalty_rate"`
	InstallmentFrecuency Number `json:"installment_frecuency"`
	GracePeriodDays      Number `json:"grace_period_days"`
}

// PlanConditions are per-brand overrides for a financing plan.
type PlanConditions struct {
	ID              int64  `json:"id,omitempty"`
	FinancingPlanID int64  `json:"financing_plan_id"`
	BrandID         int64  `json:"brand_id"`
	Installments    Number `json:"installments"`
	DownPayment     Number `json:"down_payment"`
	CreditLimit     Number `json:"credit_limit"`
}

type FinancingBreakdown struct {
	PlanID                int64         `json:"plan_id"`
	TotalProductCost      float64       `json:"total_product_cost"`
	CalculatedDownPayment float64       `json:"calculated_down_payment"`
	FinancedAmount        float64       `json:"financed_amount"`
	ProcessingFee         float64       `json:"processing_fee"`
	InterestAmount        float64       `json:"interest_amount"`
	TotalAmountToRepay    float64       `json:"total_amount_to_repay"`
	InstallmentCount      int           `json:"installment_count"`
	InstallmentAmount     float64       `json:"installment_amount"`
	FinalProductCost      float64       `json:"final_product_cost"`
	InstallmentDates      []Date        `json:"installment_dates"`
	TotalAmountFinanced   float64       `json:"total_amount_financed"`
	BlockPenaltyAmount    float64       `json:"block_penalty_amount"`
	SelectedFinancingPlan FinancingPlan `json:"selected_financing_plan"`
}

type CalculateFinancingRequest struct {
	TotalAmount     float64         `json:"total_amount"`
	FinancingPlan   *FinancingPlan  `json:"financing_plan"`
	PlanConditions  *PlanConditions `json:"plan_conditions,omitempty"`
	CreditAvailable *float64        `json:"credit_available,omitempty"`
}

type CalculateFinancingResponse struct {
	Breakdown    *FinancingBreakdown `json:"breakdown"`
	Installments []Installment       `json:"installments"`
}

type Client struct {
	ID              int64  `json:"id"`
	DocumentTypeID  int64  `json:"document_type_id,omitempty"`
	DocumentNumber  string `json:"document_number"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
	CreditAvailable Number `json:"credit_available"`
}

type ClientCreateRequest struct {
	DocumentTypeID int64  `json:"document_type_id"`
	DocumentNumber string `json:"document_number"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Address        string `json:"address,omitempty"`
}

type Product struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	BrandID   int64  `json:"brand_id"`
	BrandName string `json:"brand_name,omitempty"`
	Price     Number `json:"price"`
}

type InventoryUnit struct {
	ID           int64    `json:"id"`
	ProductID    int64    `json:"product_id"`
	SerialNumber string   `json:"serial_number"`
	Status       string   `json:"status,omitempty"`
	Price        Number   `json:"price"`
	Product      *Product `json:"product,omitempty"`
}

type PaymentMethod struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	RequiresReference bool   `json:"requires_reference"`
}

type Payment struct {
	ID              int64   `json:"id,omitempty"`
	InstallmentID   int64   `json:"installment_id"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
	Reference       string  `json:"reference,omitempty"`
	PaidAt          Date    `json:"paid_at"`
}

type Installment struct {
	ID            int64     `json:"id,omitempty"`
	SaleID        int64     `json:"sale_id,omitempty"`
	Number        int       `json:"number"`
	DueDate       Date      `json:"due_date"`
	Amount        float64   `json:"amount"`
	AmountPending Number    `json:"amount_pending"`
	IsInicial     bool      `json:"is_inicial"`
	Payments      []Payment `json:"payments,omitempty"`
}

type FinancingContract struct {
	ID                 int64   `json:"id,omitempty"`
	SaleID             int64   `json:"sale_id"`
	FinancingPlanID    int64   `json:"financing_plan_id"`
	TotalProductCost   float64 `json:"total_product_cost"`
	DownPayment        float64 `json:"down_payment"`
	FinancedAmount     float64 `json:"financed_amount"`
	ProcessingFee      float64 `json:"processing_fee"`
	InterestAmount     float64 `json:"interest_amount"`
	TotalAmountToRepay float64 `json:"total_amount_to_repay"`
	InstallmentCount   int     `json:"installment_count"`
	InstallmentAmount  float64 `json:"installment_amount"`
	FinalProductCost   float64 `json:"final_product_cost"`
	BlockPenaltyAmount float64 `json:"block_penalty_amount"`
	Notes              string  `json:"notes,omitempty"`
}

type ContractSubmission struct {
	Contract     FinancingContract `json:"contract"`
	Installments []Installment     `json:"installments"`
}

// Sale is the persisted sale record as the platform returns it.
type Sale struct {
	ID                int64              `json:"id"`
	SaleStatusID      int                `json:"sale_status_id"`
	Client            *Client            `json:"client,omitempty"`
	FinancingPlan     *FinancingPlan     `json:"financing_plan,omitempty"`
	Product           *Product           `json:"product,omitempty"`
	InventoryUnit     *InventoryUnit     `json:"inventory_unit,omitempty"`
	TotalAmount       Number             `json:"total_amount"`
	FinancingContract *FinancingContract `json:"financing_contract,omitempty"`
	Installments      []Installment      `json:"installments,omitempty"`
	Notes             string             `json:"notes,omitempty"`
}

type SaleVerification struct {
	Approved      bool           `json:"approved"`
	FinancingPlan *FinancingPlan `json:"financing_plan,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

type SaleItemRequest struct {
	ProductID       int64   `json:"product_id"`
	InventoryUnitID int64   `json:"inventory_unit_id"`
	Amount          float64 `json:"amount"`
}

type PaymentRequest struct {
	PaymentMethodID int64   `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
	Reference       string  `json:"reference,omitempty"`
	PaidAt          Date    `json:"paid_at"`
}

type PaymentReceipt struct {
	Payment     Payment     `json:"payment"`
	Installment Installment `json:"installment"`
}

// SaleAggregate accumulates everything the sale wizard has learned so far.
type SaleAggregate struct {
	Client                  *Client             `json:"client,omitempty"`
	SaleID                  int64               `json:"sale_id,omitempty"`
	Product                 *Product            `json:"product,omitempty"`
	InventoryUnit           *InventoryUnit      `json:"inventory_unit,omitempty"`
	TotalAmount             float64             `json:"total_amount"`
	FinancingPlan           *FinancingPlan      `json:"financing_plan,omitempty"`
	PlanConditions          *PlanConditions     `json:"plan_conditions,omitempty"`
	Breakdown               *FinancingBreakdown `json:"breakdown,omitempty"`
	Contract                *FinancingContract  `json:"contract,omitempty"`
	Installments            []Installment       `json:"installments,omitempty"`
	Payments                []Payment           `json:"payments,omitempty"`
	PaymentMethods          []PaymentMethod     `json:"payment_methods,omitempty"`
	SelectedPaymentMethodID int64               `json:"selected_payment_method_id,omitempty"`
	Notes                   string              `json:"notes,omitempty"`
	IsProductSaved          bool                `json:"is_product_saved"`
	ProductLocked           bool                `json:"product_locked"`
	IsStep4Completed        bool                `json:"is_step4_completed"`
	IsEnrollmentReady       bool                `json:"is_enrollment_ready"`
}

type SelectClientRequest struct {
	ClientID int64 `json:"client_id"`
}

type SelectProductRequest struct {
	InventoryUnitID int64 `json:"inventory_unit_id"`
}

type ConfirmDetailsRequest struct {
	Notes string `json:"notes"`
}

type SelectPaymentMethodRequest struct {
	PaymentMethodID int64 `json:"payment_method_id"`
}

type SubmitPaymentRequest struct {
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference,omitempty"`
	PaidAt    string  `json:"paid_at,omitempty"`
}

type CancelSaleRequest struct {
	Notes string `json:"notes"`
}

type ResumeWizardRequest struct {
	SaleID int64 `json:"sale_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type SellerCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SellerUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	SaleStatusDraft          = 1
	SaleStatusPending        = 2
	SaleStatusCreated        = 3
	SaleStatusVerified       = 4
	SaleStatusContracted     = 5
	SaleStatusPaymentPending = 6
	SaleStatusCompleted      = 7
	SaleStatusCancelled      = 8
)

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)
