package domain

import "time"

// Product is the backend's product record. The terminal treats it as a
// read-only snapshot: stock is current as of the fetch, the authoritative
// copy lives server-side.
type Product struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Barcode  string  `json:"barcode"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Category string  `json:"category"`
}

// ProductUpsertRequest is the payload for product create and update calls.
type ProductUpsertRequest struct {
	Name     string  `json:"name"`
	Barcode  string  `json:"barcode"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Category string  `json:"category"`
}

// LineItem is one product entry in the billing cart. Name, price and the
// stock ceiling are copied from the catalog snapshot at insertion time and
// stay frozen for the rest of the cart session.
type LineItem struct {
	Barcode  string  `json:"barcode"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Stock    int     `json:"stock"`
}

// LineTotal is price times quantity for this line.
func (li LineItem) LineTotal() float64 {
	return li.Price * float64(li.Quantity)
}

// SaleItem is the minimal wire shape sent on sale creation. Price is
// intentionally absent: the backend prices the sale at commit time.
type SaleItem struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}

// SaleRequest is the POST /sales body.
type SaleRequest struct {
	Items         []SaleItem `json:"items"`
	PaymentMethod string     `json:"paymentMethod"`
}

// BillItem is a line of a persisted sale as the backend reports it.
type BillItem struct {
	Barcode  string  `json:"barcode"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

// Bill is a finalized, backend-persisted sale record.
type Bill struct {
	ID            string     `json:"_id"`
	BillNumber    string     `json:"billNumber"`
	Items         []BillItem `json:"items"`
	TotalAmount   float64    `json:"totalAmount"`
	PaymentMethod string     `json:"paymentMethod"`
	Cashier       string     `json:"cashier,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Payment methods accepted at the till. The tag is extensible: the backend
// validates, the terminal only rejects the empty string.
const (
	PaymentCash = "cash"
	PaymentUPI  = "upi"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// SalesSummary is the GET /reports/total read model.
type SalesSummary struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalBills   int     `json:"totalBills"`
}

// DailySales is one row of the GET /reports/date read model. The backend
// keys rows by date string (YYYY-MM-DD) in the _id field.
type DailySales struct {
	Date         string  `json:"_id"`
	TotalRevenue float64 `json:"totalRevenue"`
}

type MonthKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type MonthlySales struct {
	Key          MonthKey `json:"_id"`
	TotalRevenue float64  `json:"totalRevenue"`
}

type YearKey struct {
	Year int `json:"year"`
}

type YearlySales struct {
	Key          YearKey `json:"_id"`
	TotalRevenue float64 `json:"totalRevenue"`
}

// EmailNotifyRequest and SMSNotifyRequest are the outbound payload shapes
// for POST /notify/email and POST /notify/sms. Dispatch is the backend's
// concern; the terminal only renders billText.
type EmailNotifyRequest struct {
	Email    string `json:"email"`
	BillText string `json:"billText"`
}

type SMSNotifyRequest struct {
	Phone    string `json:"phone"`
	BillText string `json:"billText"`
}

// Notification levels surfaced to the cashier UI.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notification codes, one per engine outcome the UI reacts to.
const (
	CodeProductNotFound = "product_not_found"
	CodeOutOfStock      = "out_of_stock"
	CodeInvalidQuantity = "invalid_quantity"
	CodeEmptyCart       = "empty_cart"
	CodeSubmitInFlight  = "submit_in_flight"
	CodeSaleCreated     = "sale_created"
	CodeSaleFailed      = "sale_failed"
	CodeLookupFailed    = "lookup_failed"
	CodeCatalogStale    = "catalog_stale"
)

// Notification is one event for the cashier-facing notification feed.
type Notification struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
