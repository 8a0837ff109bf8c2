package domain

import "time"

type Drug struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Brand  string `json:"brand"`
	Dosage string `json:"dosage"`
	Unit   string `json:"unit"`
	Active bool   `json:"active"`
}

type DrugCreateRequest struct {
	Name   string `json:"name"`
	Brand  string `json:"brand"`
	Dosage string `json:"dosage"`
	Unit   string `json:"unit"`
}

type DrugUpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Brand  *string `json:"brand,omitempty"`
	Dosage *string `json:"dosage,omitempty"`
	Unit   *string `json:"unit,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// StockBatch is one intake of a drug with its own quantity, expiry and
// prices. Batches are consumed FEFO and never deleted while a sale
// references the drug; depletion drives quantity to zero instead.
type StockBatch struct {
	ID                 string     `json:"id"`
	DrugID             string     `json:"drug_id"`
	BatchNumber        string     `json:"batch_number"`
	Quantity           int        `json:"quantity"`
	PurchasePriceCents int64      `json:"purchase_price_cents"`
	SellingPriceCents  int64      `json:"selling_price_cents"`
	ExpiryDate         *time.Time `json:"expiry_date,omitempty"`
	Location           string     `json:"location,omitempty"`
	Supplier           string     `json:"supplier,omitempty"`
	SourceType         string     `json:"source_type"`
	SourceID           string     `json:"source_id,omitempty"`
	ReceivedAt         time.Time  `json:"received_at"`
}

type StockIntakeRequest struct {
	DrugID             string `json:"drug_id"`
	BatchNumber        string `json:"batch_number"`
	Quantity           int    `json:"quantity"`
	PurchasePriceCents int64  `json:"purchase_price_cents"`
	SellingPriceCents  int64  `json:"selling_price_cents"`
	ExpiryDate         string `json:"expiry_date,omitempty"`
	Location           string `json:"location,omitempty"`
	Supplier           string `json:"supplier,omitempty"`
}

type StockBatchListResponse struct {
	Batches []StockBatch `json:"batches"`
}

type AvailabilityResponse struct {
	DrugID    string `json:"drug_id"`
	Available int    `json:"available"`
}

// CartItem is a session-scoped staging line. Name and price are
// denormalized snapshots refreshed on every cart mutation; the final
// charge is always recomputed from live prices at checkout.
type CartItem struct {
	DrugID     string `json:"drug_id"`
	DrugName   string `json:"drug_name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c Cart) TotalCents() int64 {
	total := int64(0)
	for _, item := range c.Items {
		total += item.PriceCents * int64(item.Quantity)
	}
	return total
}

type CartSnapshot struct {
	SessionID  string     `json:"session_id"`
	Items      []CartItem `json:"items"`
	TotalCents int64      `json:"total_cents"`
}

type CartAddRequest struct {
	DrugID   string `json:"drug_id"`
	Quantity int    `json:"quantity"`
}

type CartUpdateRequest struct {
	Quantity int `json:"quantity"`
}

// SaleItem is immutable after creation: the unit price is a historical
// snapshot, independent of later batch price changes.
type SaleItem struct {
	DrugID         string `json:"drug_id"`
	DrugName       string `json:"drug_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Sale struct {
	ID                string      `json:"id"`
	CustomerID        string      `json:"customer_id,omitempty"`
	StaffUsername     string      `json:"staff_username,omitempty"`
	OrderType         string      `json:"order_type"`
	OrderStatus       OrderStatus `json:"order_status"`
	PaymentStatus     string      `json:"payment_status"`
	PaymentMethod     string      `json:"payment_method,omitempty"`
	TotalCents        int64       `json:"total_cents"`
	DiscountCents     int64       `json:"discount_cents"`
	AmountPaidCents   int64       `json:"amount_paid_cents"`
	ProofOfPaymentRef string      `json:"proof_of_payment_ref,omitempty"`
	DeliveryAddress   string      `json:"delivery_address,omitempty"`
	// StockDeducted records whether batch quantities have been consumed
	// for this sale's items. It is the single source of truth guarding
	// against double deduction and double return.
	StockDeducted bool       `json:"stock_deducted"`
	Notes         string     `json:"notes,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	SaleDate      time.Time  `json:"sale_date"`
	Items         []SaleItem `json:"items"`
}

type POSCheckoutRequest struct {
	CustomerID    string `json:"customer_id,omitempty"`
	PaymentMethod string `json:"payment_method"`
	DiscountCents int64  `json:"discount_cents"`
	Notes         string `json:"notes,omitempty"`
}

type OnlineOrderRequest struct {
	OrderType         string `json:"order_type"`
	CustomerID        string `json:"customer_id,omitempty"`
	DeliveryAddress   string `json:"delivery_address,omitempty"`
	DiscountCents     int64  `json:"discount_cents"`
	ProofOfPaymentRef string `json:"proof_of_payment_ref,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

type SaleResponse struct {
	Sale Sale `json:"sale"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
}

type CancelOrderRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type ExpiringBatchReport struct {
	WithinDays int          `json:"within_days"`
	Batches    []StockBatch `json:"batches"`
}

type LowStockEntry struct {
	DrugID    string `json:"drug_id"`
	Name      string `json:"name"`
	Available int    `json:"available"`
}

type LowStockReport struct {
	Threshold int             `json:"threshold"`
	Entries   []LowStockEntry `json:"entries"`
}

type DailySalesByType struct {
	OrderType  string `json:"order_type"`
	Orders     int64  `json:"orders"`
	TotalCents int64  `json:"total_cents"`
}

type DailySalesReport struct {
	Date          string             `json:"date"`
	Orders        int64              `json:"orders"`
	GrossCents    int64              `json:"gross_cents"`
	DiscountCents int64              `json:"discount_cents"`
	NetCents      int64              `json:"net_cents"`
	ByType        []DailySalesByType `json:"by_type"`
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

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
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

const (
	OrderTypeInPerson = "in_person"
	OrderTypePickup   = "pickup"
	OrderTypeDelivery = "delivery"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
)

const (
	BatchSourceIntake = "intake"
	BatchSourceReturn = "return"
)

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleCustomer   = "customer"
)
