// Package host defines the narrow surface the gateway needs from the
// commerce platform it is embedded in. Orders, customers and order
// processing stay owned by the host; the gateway only calls through these
// interfaces and persists its own small state in redis.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("host: entity not found")

// OrderSubject and CustomerSubject scope attribute-store keys.
func OrderSubject(orderID int64) string { return fmt.Sprintf("order:%d", orderID) }

// CustomerSubject scopes attributes to a host customer.
func CustomerSubject(customerID int64) string { return fmt.Sprintf("customer:%d", customerID) }

// PaymentStatus is the host's payment lifecycle state of an order.
type PaymentStatus int

const (
	PaymentPending PaymentStatus = iota
	PaymentAuthorized
	PaymentPaid
	PaymentPartiallyRefunded
	PaymentRefunded
	PaymentVoided
)

// Order is the slice of a host order the gateway operates on. Guid is the
// value submitted to the provider as transaction_id.
type Order struct {
	ID                   int64
	Guid                 uuid.UUID
	CustomerID           int64
	Total                float64
	Subtotal             float64
	ShippingTotal        float64
	TaxTotal             float64
	CurrencyCode         string
	CaptureTransactionID string
	PaymentStatus        PaymentStatus
	Items                []OrderItem
}

// OrderItem is one order line as shown on the hosted payment page.
type OrderItem struct {
	Name             string
	ShortDescription string
	Quantity         int
}

// Customer carries the billing details submitted with a checkout session.
type Customer struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	Address      string
	Address2     string
	Phone        string
	PostalCode   string
	City         string
	State        string
	CountryCode  string // three-letter ISO
	LanguageCode string // two-letter ISO
}

// OrderService reads and annotates host orders.
type OrderService interface {
	OrderByGuid(ctx context.Context, guid uuid.UUID) (Order, error)
	OrderByID(ctx context.Context, id int64) (Order, error)
	AddOrderNote(ctx context.Context, orderID int64, note string) error
	SetCaptureTransactionID(ctx context.Context, orderID int64, captureID string) error
	SetPaymentPending(ctx context.Context, orderID int64) error
}

// OrderProcessor exposes the host's order state machine. Every mutation is
// guarded by its predicate; the gateway never forces a transition the host
// would not allow.
type OrderProcessor interface {
	CanMarkOrderAsPaid(order Order) bool
	MarkOrderAsPaid(ctx context.Context, orderID int64) error
	CanCancelOrder(order Order) bool
	CancelOrder(ctx context.Context, orderID int64) error
	CanPartiallyRefundOffline(order Order, amount float64) bool
	PartiallyRefundOffline(ctx context.Context, orderID int64, amount float64) error
	CheckOrderStatus(ctx context.Context, orderID int64) error
}

// CustomerService resolves billing details for the session builder.
type CustomerService interface {
	Customer(ctx context.Context, id int64) (Customer, error)
}

// AttributeStore is a generic string attribute store scoped by subject
// ("order:<id>", "customer:<id>"). Get returns an empty string when the
// attribute is absent.
type AttributeStore interface {
	Get(ctx context.Context, subject, name string) (string, error)
	Set(ctx context.Context, subject, name, value string) error
	Delete(ctx context.Context, subject, name string) error
	// SetIfChanged atomically stores value unless the attribute already
	// holds it. It reports whether the value was written, i.e. false means
	// the same value was already present.
	SetIfChanged(ctx context.Context, subject, name, value string) (bool, error)
}

// PendingCheckout is the short-lived server-side state of an inline
// checkout session created before the order exists.
type PendingCheckout struct {
	OrderGuid    uuid.UUID `json:"order_guid"`
	CustomerID   int64     `json:"customer_id"`
	Total        float64   `json:"total"`
	CurrencyCode string    `json:"currency_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingCheckoutStore holds pending checkouts keyed by the order guid to
// be. Load returns ErrNotFound for unknown or expired guids.
type PendingCheckoutStore interface {
	Save(ctx context.Context, pending PendingCheckout) error
	Load(ctx context.Context, orderGuid uuid.UUID) (PendingCheckout, error)
	Delete(ctx context.Context, orderGuid uuid.UUID) error
}

// RouteResolver turns symbolic route names into absolute public URLs.
type RouteResolver interface {
	RouteURL(route string, args ...string) string
}

// CurrencyConverter converts amounts between the store currency and the
// currency the provider settled the transaction in.
type CurrencyConverter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}
