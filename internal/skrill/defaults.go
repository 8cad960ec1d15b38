package skrill

// Service endpoints and protocol constants for Skrill Quick Checkout.
const (
	// QuickCheckoutURL is the hosted payment page and session-preparation endpoint.
	QuickCheckoutURL = "https://pay.skrill.com"
	// RefundServiceURL handles the two-phase refund protocol.
	RefundServiceURL = "https://www.skrill.com/app/refund.pl"
	// MQIServiceURL is the merchant query interface (history, transaction status).
	MQIServiceURL = "https://www.skrill.com/app/query.pl"

	// UserAgent identifies this integration on outbound requests.
	UserAgent = "commercekit-skrill-gateway/1.0"

	// ReferralID is the partner referral identifier passed via merchant fields.
	ReferralID = "124956815"
)

// Endpoints holds the provider service base URLs, overridable for tests
// and sandbox environments.
type Endpoints struct {
	Checkout string
	Refund   string
	MQI      string
}

// DefaultEndpoints returns the production service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Checkout: QuickCheckoutURL,
		Refund:   RefundServiceURL,
		MQI:      MQIServiceURL,
	}
}

// Attribute keys used against the host attribute store.
const (
	// RefundGuidAttribute stores the refund idempotency token per order.
	RefundGuidAttribute = "SkrillRefundGuid"
	// PaymentTransactionIDAttribute bridges a pre-order callback transaction id
	// to the later capture step, per customer.
	PaymentTransactionIDAttribute = "SkrillPaymentTransactionId"
)

// Symbolic route names resolved by the host.
const (
	RouteCheckoutCompleted    = "CheckoutCompleted"
	RouteOrderDetails         = "OrderDetails"
	RouteQuickCheckoutWebhook = "Skrill.QuickCheckoutWebhook"
	RouteRefundWebhook        = "Skrill.RefundWebhook"
	RouteOrderPaidWebhook     = "Skrill.OrderPaidWebhook"
)
