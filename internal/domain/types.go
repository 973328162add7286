package domain

import (
	"strings"
	"time"
)

// Order status values persisted on the order document.
const (
	OrderStatusProcessing = "processing"
	OrderStatusComplete   = "complete"
	OrderStatusCancelled  = "cancelled"
)

// Transaction status values for the payment lifecycle state machine.
const (
	TransactionStatusRequested  = "payment_requested"
	TransactionStatusProcessing = "payment_processing"
	TransactionStatusSucceeded  = "payment_succeeded"
	TransactionStatusFailed     = "payment_failed"
	TransactionStatusRefunded   = "payment_refunded"
)

// Address is a postal address. Country holds the ISO 3166-1 alpha-3 code as
// entered by the customer; Region holds the free-form state or province name.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Product is a catalogue entry. Price is a decimal string with two
// fractional digits. A product with a download artifact ships nothing.
type Product struct {
	Code        string
	Name        string
	Description string
	Price       string
	Stock       int64
	DownloadURL string
	Active      bool
}

// IsDigital reports whether the product is delivered as a download only.
func (p Product) IsDigital() bool {
	return strings.TrimSpace(p.DownloadURL) != ""
}

// Address selector values a checkout submission can name.
const (
	AddressSelectorBilling  = "billing"
	AddressSelectorDelivery = "delivery"
)

// Contact holds the customer's stored contact details. Billing is required
// before checkout; Delivery is the optional second address shipped orders
// can be sent to instead.
type Contact struct {
	CustomerID string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Billing    Address
	Delivery   *Address
	UpdatedAt  time.Time
}

// User is the slice of the identity platform's profile record the shop
// reads. Address is the opaque account address assigned at signup; it salts
// transaction identifiers.
type User struct {
	UID       string
	Address   string
	FirstName string
	LastName  string
	Email     string
}

// BasketLine is a client-submitted line: a product code and a quantity.
type BasketLine struct {
	Code     string
	Quantity int64
}

// PricedLine is a basket line after catalogue resolution. Monetary fields
// are decimal strings with two fractional digits.
type PricedLine struct {
	Code      string
	Name      string
	Quantity  int64
	UnitPrice string
	LineTotal string
	Digital   bool
}

// OrderAmounts groups the monetary components of a sales transaction as
// decimal strings with two fractional digits.
type OrderAmounts struct {
	Subtotal string
	Shipping string
	Tax      string
	Total    string
}

// Order is the persisted reconciliation record linking a customer basket to
// a payment intent. TransactionID doubles as the document identifier. The
// address fields are snapshots taken at calculation time, not references;
// a contact edited after checkout leaves them untouched.
type Order struct {
	TransactionID     string
	CustomerID        string
	PaymentIntentID   string
	ClientSecret      string
	TaxCalculationID  string
	Currency          string
	Lines             []PricedLine
	Amounts           OrderAmounts
	BillingAddress    Address
	DeliveryAddress   Address
	OrderStatus       string
	TransactionStatus string
	TaxRecordID       string
	ProcessingFee     string
	ExchangeRate      *float64
	FundsAvailableAt  time.Time
	Fulfilled         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DisplayStatus maps the internal transaction status to the label shown to
// customers in their order history.
func DisplayStatus(transactionStatus string) string {
	switch transactionStatus {
	case TransactionStatusRequested:
		return "Pending"
	case TransactionStatusProcessing:
		return "Processing"
	case TransactionStatusFailed:
		return "Failed"
	case TransactionStatusSucceeded:
		return "Paid"
	case TransactionStatusRefunded:
		return "Refunded"
	default:
		return "Pending"
	}
}
