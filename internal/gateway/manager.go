// Package gateway orchestrates the provider protocol against the host
// platform: checkout session preparation, refunds, credential validation
// and webhook authentication.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/commercekit/skrill-gateway/internal/host"
	"github.com/commercekit/skrill-gateway/internal/obs"
	"github.com/commercekit/skrill-gateway/internal/skrill"
)

// Flow selects how the hosted payment page is presented.
type Flow string

const (
	// FlowRedirect sends the customer to the provider page after the order
	// is placed.
	FlowRedirect Flow = "redirect"
	// FlowInline embeds the payment form during checkout, before the order
	// exists.
	FlowInline Flow = "inline"
)

// Credentials are the merchant account settings. SecretWord signs webhook
// callbacks; Password authorizes the refund and query services.
type Credentials struct {
	MerchantEmail string
	SecretWord    string
	Password      string
}

// StoreInfo describes the host store as shown on the payment page.
type StoreInfo struct {
	Name            string
	PlatformVersion string
}

// Manager is the orchestrating facade over the provider protocol and the
// host services.
type Manager struct {
	Creds     Credentials
	Flow      Flow
	Store     StoreInfo
	Endpoints skrill.Endpoints
	Client    *skrill.Client
	Orders    host.OrderService
	Processor host.OrderProcessor
	Customers host.CustomerService
	Attrs     host.AttributeStore
	Pending   host.PendingCheckoutStore
	Routes    host.RouteResolver
	Rates     host.CurrencyConverter
	Log       zerolog.Logger
	Now       func() time.Time
}

// Configured reports whether the merchant credentials required for the
// checkout and webhook protocol are present.
func (m *Manager) Configured() bool {
	return strings.TrimSpace(m.Creds.MerchantEmail) != "" && strings.TrimSpace(m.Creds.SecretWord) != ""
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) endpoints() skrill.Endpoints {
	if m.Endpoints == (skrill.Endpoints{}) {
		return skrill.DefaultEndpoints()
	}
	return m.Endpoints
}

// passwordMD5 is the refund/MQI password form: lowercase hex MD5.
func (m *Manager) passwordMD5() string {
	return strings.ToLower(skrill.MD5Hex(m.Creds.Password))
}

func (m *Manager) observeProviderCall(operation string, start time.Time) {
	if obs.ProviderRequestLatency != nil {
		obs.ProviderRequestLatency.WithLabelValues(operation).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func sessionResult(flow Flow, result string) {
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues(string(flow), result).Inc()
	}
}

// PrepareOrderCheckout builds the hosted-page redirect URL for a placed
// order (redirect flow): one session-preparation GET, then the redirect
// URL embedding the returned session token.
func (m *Manager) PrepareOrderCheckout(ctx context.Context, orderID int64) (string, error) {
	return perform(ctx, m, "PrepareOrderCheckout", func(ctx context.Context) (string, error) {
		ctx, span := otel.Tracer("gateway.Manager").Start(ctx, "Manager.PrepareOrderCheckout")
		defer span.End()
		span.SetAttributes(attribute.Int64("order.id", orderID))

		order, err := m.Orders.OrderByID(ctx, orderID)
		if err != nil {
			sessionResult(FlowRedirect, "error")
			return "", fmt.Errorf("%w: order %d: %v", ErrMissingEntity, orderID, err)
		}
		customer, err := m.Customers.Customer(ctx, order.CustomerID)
		if err != nil {
			sessionResult(FlowRedirect, "error")
			return "", fmt.Errorf("%w: customer %d: %v", ErrMissingEntity, order.CustomerID, err)
		}

		orderIDText := fmt.Sprintf("%d", order.ID)
		params := skrill.SessionParams{
			MerchantEmail:   m.Creds.MerchantEmail,
			StoreName:       m.Store.Name,
			TransactionID:   order.Guid.String(),
			ReturnURL:       m.Routes.RouteURL(skrill.RouteCheckoutCompleted, "orderId", orderIDText),
			ReturnURLText:   "Back to the store",
			CancelURL:       m.Routes.RouteURL(skrill.RouteOrderDetails, "orderId", orderIDText),
			StatusURL:       m.Routes.RouteURL(skrill.RouteQuickCheckoutWebhook),
			Language:        customer.LanguageCode,
			PlatformVersion: m.Store.PlatformVersion,
			Customer:        sessionCustomer(customer),
			Currency:        order.CurrencyCode,
			Total:           order.Total,
			Breakdown:       orderBreakdown(order),
			Items:           sessionItems(order.Items),
		}

		start := m.now()
		token, err := m.Client.RequestSessionToken(ctx, m.endpoints().BuildSessionRequestURL(params))
		m.observeProviderCall("session_prepare", start)
		if err != nil {
			sessionResult(FlowRedirect, "error")
			return "", err
		}
		sessionResult(FlowRedirect, "success")
		return m.endpoints().RedirectURL(token), nil
	})
}

// InlineCheckoutRequest carries the running cart state the inline flow
// submits before an order exists.
type InlineCheckoutRequest struct {
	CustomerID   int64
	Total        float64
	CurrencyCode string
	Items        []host.OrderItem
}

// InlineCheckout is the prepared inline session: the iframe URL plus the
// order guid the webhook and the later order placement will share.
type InlineCheckout struct {
	PaymentURL string
	OrderGuid  uuid.UUID
}

// PrepareInlineCheckout opens an inline session for a not-yet-placed order.
// It mints the order guid, parks the pending checkout in the session store
// and returns the embeddable payment URL.
func (m *Manager) PrepareInlineCheckout(ctx context.Context, req InlineCheckoutRequest) (InlineCheckout, error) {
	return perform(ctx, m, "PrepareInlineCheckout", func(ctx context.Context) (InlineCheckout, error) {
		ctx, span := otel.Tracer("gateway.Manager").Start(ctx, "Manager.PrepareInlineCheckout")
		defer span.End()

		customer, err := m.Customers.Customer(ctx, req.CustomerID)
		if err != nil {
			sessionResult(FlowInline, "error")
			return InlineCheckout{}, fmt.Errorf("%w: customer %d: %v", ErrMissingEntity, req.CustomerID, err)
		}

		orderGuid := uuid.New()
		pending := host.PendingCheckout{
			OrderGuid:    orderGuid,
			CustomerID:   req.CustomerID,
			Total:        req.Total,
			CurrencyCode: req.CurrencyCode,
			CreatedAt:    m.now().UTC(),
		}
		if err := m.Pending.Save(ctx, pending); err != nil {
			sessionResult(FlowInline, "error")
			return InlineCheckout{}, err
		}

		params := skrill.SessionParams{
			MerchantEmail:   m.Creds.MerchantEmail,
			StoreName:       m.Store.Name,
			TransactionID:   orderGuid.String(),
			ReturnURL:       m.Routes.RouteURL(skrill.RouteOrderPaidWebhook),
			StatusURL:       m.Routes.RouteURL(skrill.RouteQuickCheckoutWebhook),
			Language:        customer.LanguageCode,
			PlatformVersion: m.Store.PlatformVersion,
			Customer:        sessionCustomer(customer),
			CustomerID:      fmt.Sprintf("%d", req.CustomerID),
			Inline:          true,
			Currency:        req.CurrencyCode,
			Total:           req.Total,
			Items:           sessionItems(req.Items),
		}

		start := m.now()
		token, err := m.Client.RequestSessionToken(ctx, m.endpoints().BuildSessionRequestURL(params))
		m.observeProviderCall("session_prepare", start)
		if err != nil {
			sessionResult(FlowInline, "error")
			return InlineCheckout{}, err
		}
		sessionResult(FlowInline, "success")
		return InlineCheckout{PaymentURL: m.endpoints().RedirectURL(token), OrderGuid: orderGuid}, nil
	})
}

// Refund starts a refund for a captured order. amount is in the store
// currency; zero or the full order total requests a full refund. The result
// reports whether the provider completed the refund synchronously; false
// with a nil error means the refund webhook will finish it.
func (m *Manager) Refund(ctx context.Context, orderID int64, amount float64) (bool, error) {
	return perform(ctx, m, "Refund", func(ctx context.Context) (bool, error) {
		ctx, span := otel.Tracer("gateway.Manager").Start(ctx, "Manager.Refund")
		defer span.End()
		span.SetAttributes(attribute.Int64("order.id", orderID))

		order, err := m.Orders.OrderByID(ctx, orderID)
		if err != nil {
			m.refundResult("error")
			return false, fmt.Errorf("%w: order %d: %v", ErrMissingEntity, orderID, err)
		}
		if order.CaptureTransactionID == "" {
			m.refundResult("error")
			return false, fmt.Errorf("order %d has no capture transaction", orderID)
		}

		amountText := ""
		if amount > 0 && amount < order.Total {
			converted, err := m.refundAmountInTransactionCurrency(ctx, order, amount)
			if err != nil {
				m.refundResult("error")
				return false, err
			}
			amountText = skrill.FormatAmount(converted)
		}

		// a fresh token per attempt lets the confirmation webhook
		// distinguish this refund from already-processed ones
		refundGuid := uuid.NewString()
		if err := m.Attrs.Set(ctx, host.OrderSubject(order.ID), skrill.RefundGuidAttribute, refundGuid); err != nil {
			m.refundResult("error")
			return false, err
		}

		prepareURL := m.endpoints().BuildRefundPrepareURL(skrill.RefundParams{
			MerchantEmail:   m.Creds.MerchantEmail,
			PasswordMD5:     m.passwordMD5(),
			TransactionID:   order.Guid.String(),
			MBTransactionID: order.CaptureTransactionID,
			Amount:          amountText,
			RefundGuid:      refundGuid,
			RefundStatusURL: m.Routes.RouteURL(skrill.RouteRefundWebhook),
		})
		start := m.now()
		body, err := m.Client.Get(ctx, prepareURL)
		m.observeProviderCall("refund_prepare", start)
		if err != nil {
			m.refundResult("error")
			return false, err
		}
		sid, err := skrill.ParseRefundPrepare(body)
		if err != nil {
			m.refundResult("rejected")
			return false, err
		}

		start = m.now()
		body, err = m.Client.Get(ctx, m.endpoints().BuildRefundConfirmURL(sid))
		m.observeProviderCall("refund_confirm", start)
		if err != nil {
			m.refundResult("error")
			return false, err
		}
		completed, err := skrill.ParseRefundConfirm(body)
		switch {
		case err != nil:
			m.refundResult("rejected")
		case completed:
			m.refundResult("completed")
		default:
			m.refundResult("pending")
		}
		return completed, err
	})
}

func (m *Manager) refundResult(result string) {
	if obs.RefundTotal != nil {
		obs.RefundTotal.WithLabelValues(result).Inc()
	}
}

// refundAmountInTransactionCurrency converts a partial refund amount from
// the store currency into the currency the provider settled the payment in,
// looked up via the merchant query interface.
func (m *Manager) refundAmountInTransactionCurrency(ctx context.Context, order host.Order, amount float64) (float64, error) {
	transactionCurrency, err := m.TransactionCurrencyCode(ctx, order.CaptureTransactionID)
	if err != nil {
		return 0, err
	}
	if m.Rates == nil || strings.EqualFold(transactionCurrency, order.CurrencyCode) {
		return amount, nil
	}
	return m.Rates.Convert(ctx, amount, order.CurrencyCode, transactionCurrency)
}

// ValidateCredentials checks the merchant email and API password against
// the merchant query interface.
func (m *Manager) ValidateCredentials(ctx context.Context) error {
	_, err := perform(ctx, m, "ValidateCredentials", func(ctx context.Context) (struct{}, error) {
		start := m.now()
		body, err := m.Client.Get(ctx, m.endpoints().BuildHistoryURL(m.Creds.MerchantEmail, m.passwordMD5(), m.now()))
		m.observeProviderCall("mqi_history", start)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, skrill.ParseMQIError(body)
	})
	return err
}

// TransactionCurrencyCode resolves the settlement currency of a provider
// transaction via the merchant query interface.
func (m *Manager) TransactionCurrencyCode(ctx context.Context, mbTransactionID string) (string, error) {
	return perform(ctx, m, "TransactionCurrencyCode", func(ctx context.Context) (string, error) {
		start := m.now()
		body, err := m.Client.Get(ctx, m.endpoints().BuildTransactionStatusURL(m.Creds.MerchantEmail, m.passwordMD5(), mbTransactionID))
		m.observeProviderCall("mqi_status", start)
		if err != nil {
			return "", err
		}
		if err := skrill.ParseMQIError(body); err != nil {
			return "", err
		}
		return skrill.ParseTransactionCurrency(body)
	})
}

// VerifyWebhook authenticates an inbound callback form.
func (m *Manager) VerifyWebhook(ctx context.Context, form url.Values) error {
	_, err := perform(ctx, m, "VerifyWebhook", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, skrill.VerifySignature(form, m.Creds.SecretWord)
	})
	return err
}

func sessionCustomer(c host.Customer) skrill.Customer {
	dob := ""
	if !c.DateOfBirth.IsZero() {
		dob = c.DateOfBirth.Format("02012006")
	}
	return skrill.Customer{
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		DateOfBirth: dob,
		Address:     c.Address,
		Address2:    c.Address2,
		Phone:       c.Phone,
		PostalCode:  c.PostalCode,
		City:        c.City,
		State:       c.State,
		CountryCode: c.CountryCode,
	}
}

func sessionItems(items []host.OrderItem) []skrill.LineItem {
	out := make([]skrill.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, skrill.LineItem{
			Name:             it.Name,
			ShortDescription: it.ShortDescription,
			Quantity:         it.Quantity,
		})
	}
	return out
}

func orderBreakdown(order host.Order) *skrill.AmountBreakdown {
	return &skrill.AmountBreakdown{
		Subtotal: order.Subtotal,
		Shipping: order.ShippingTotal,
		Tax:      order.TaxTotal,
	}
}
