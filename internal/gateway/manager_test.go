package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/skrill-gateway/internal/gateway"
	"github.com/commercekit/skrill-gateway/internal/host"
	"github.com/commercekit/skrill-gateway/internal/skrill"
)

type stubOrders struct {
	order     host.Order
	notes     []string
	captureID string
}

func (s *stubOrders) OrderByGuid(ctx context.Context, guid uuid.UUID) (host.Order, error) {
	if s.order.Guid != guid {
		return host.Order{}, host.ErrNotFound
	}
	return s.order, nil
}

func (s *stubOrders) OrderByID(ctx context.Context, id int64) (host.Order, error) {
	if s.order.ID != id {
		return host.Order{}, host.ErrNotFound
	}
	return s.order, nil
}

func (s *stubOrders) AddOrderNote(ctx context.Context, orderID int64, note string) error {
	s.notes = append(s.notes, note)
	return nil
}

func (s *stubOrders) SetCaptureTransactionID(ctx context.Context, orderID int64, captureID string) error {
	s.captureID = captureID
	return nil
}

func (s *stubOrders) SetPaymentPending(ctx context.Context, orderID int64) error { return nil }

type stubProcessor struct {
	canPaid bool
	paid    bool
}

func (s *stubProcessor) CanMarkOrderAsPaid(host.Order) bool { return s.canPaid }
func (s *stubProcessor) MarkOrderAsPaid(ctx context.Context, orderID int64) error {
	s.paid = true
	return nil
}
func (s *stubProcessor) CanCancelOrder(host.Order) bool                       { return false }
func (s *stubProcessor) CancelOrder(ctx context.Context, orderID int64) error { return nil }
func (s *stubProcessor) CanPartiallyRefundOffline(host.Order, float64) bool   { return true }
func (s *stubProcessor) PartiallyRefundOffline(ctx context.Context, orderID int64, amount float64) error {
	return nil
}
func (s *stubProcessor) CheckOrderStatus(ctx context.Context, orderID int64) error { return nil }

type stubCustomers struct{ customer host.Customer }

func (s stubCustomers) Customer(ctx context.Context, id int64) (host.Customer, error) {
	if s.customer.ID != id {
		return host.Customer{}, host.ErrNotFound
	}
	return s.customer, nil
}

type memAttrs struct{ values map[string]string }

func newMemAttrs() *memAttrs { return &memAttrs{values: map[string]string{}} }

func (s *memAttrs) Get(ctx context.Context, subject, name string) (string, error) {
	return s.values[subject+":"+name], nil
}

func (s *memAttrs) Set(ctx context.Context, subject, name, value string) error {
	s.values[subject+":"+name] = value
	return nil
}

func (s *memAttrs) Delete(ctx context.Context, subject, name string) error {
	delete(s.values, subject+":"+name)
	return nil
}

func (s *memAttrs) SetIfChanged(ctx context.Context, subject, name, value string) (bool, error) {
	if s.values[subject+":"+name] == value {
		return false, nil
	}
	s.values[subject+":"+name] = value
	return true, nil
}

type memPending struct {
	values map[uuid.UUID]host.PendingCheckout
}

func newMemPending() *memPending {
	return &memPending{values: map[uuid.UUID]host.PendingCheckout{}}
}

func (s *memPending) Save(ctx context.Context, pending host.PendingCheckout) error {
	s.values[pending.OrderGuid] = pending
	return nil
}

func (s *memPending) Load(ctx context.Context, orderGuid uuid.UUID) (host.PendingCheckout, error) {
	pending, ok := s.values[orderGuid]
	if !ok {
		return host.PendingCheckout{}, host.ErrNotFound
	}
	return pending, nil
}

func (s *memPending) Delete(ctx context.Context, orderGuid uuid.UUID) error {
	delete(s.values, orderGuid)
	return nil
}

// fakeProvider emulates the checkout, refund and query services on one
// httptest server.
type fakeProvider struct {
	srv *httptest.Server

	sessionToken   string
	sessionErr     string
	prepareBody    string
	confirmBody    string
	historyBody    string
	statusBody     string
	sessionQueries []url.Values
	prepareQueries []url.Values
	confirmQueries []url.Values
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{
		sessionToken: "a0b1c2d3e4f5a0b1c2d3e4f5a0b1c2d3",
		prepareBody:  "<response><sid>refund-sid-1</sid></response>",
		confirmBody:  "<response><status>2</status></response>",
		historyBody:  "some,history,rows",
		statusBody:   "status=2&mb_currency=USD&mb_amount=24.38",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/checkout", func(w http.ResponseWriter, r *http.Request) {
		f.sessionQueries = append(f.sessionQueries, r.URL.Query())
		if f.sessionErr != "" {
			w.Write([]byte(f.sessionErr))
			return
		}
		w.Write([]byte(f.sessionToken))
	})
	mux.HandleFunc("/refund", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("action") {
		case "prepare":
			f.prepareQueries = append(f.prepareQueries, q)
			w.Write([]byte(f.prepareBody))
		case "refund":
			f.confirmQueries = append(f.confirmQueries, q)
			w.Write([]byte(f.confirmBody))
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/mqi", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "history":
			w.Write([]byte(f.historyBody))
		case "status_trn":
			w.Write([]byte(f.statusBody))
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProvider) endpoints() skrill.Endpoints {
	return skrill.Endpoints{
		Checkout: f.srv.URL + "/checkout",
		Refund:   f.srv.URL + "/refund",
		MQI:      f.srv.URL + "/mqi",
	}
}

type env struct {
	m         *gateway.Manager
	provider  *fakeProvider
	orders    *stubOrders
	processor *stubProcessor
	attrs     *memAttrs
	pending   *memPending
}

func newEnv(t *testing.T) *env {
	t.Helper()
	provider := newFakeProvider(t)
	orders := &stubOrders{order: host.Order{
		ID:                   42,
		Guid:                 uuid.New(),
		CustomerID:           7,
		Total:                19.5,
		Subtotal:             15,
		ShippingTotal:        2.5,
		TaxTotal:             2,
		CurrencyCode:         "EUR",
		CaptureTransactionID: "2966121573",
		PaymentStatus:        host.PaymentPaid,
		Items:                []host.OrderItem{{Name: "Widget", Quantity: 1}},
	}}
	processor := &stubProcessor{}
	attrs := newMemAttrs()
	pending := newMemPending()
	m := &gateway.Manager{
		Creds: gateway.Credentials{
			MerchantEmail: "merchant@example.com",
			SecretWord:    "secret-word",
			Password:      "api-password",
		},
		Flow:      gateway.FlowRedirect,
		Store:     gateway.StoreInfo{Name: "Example Shop", PlatformVersion: "1.0.0"},
		Endpoints: provider.endpoints(),
		Client:    skrill.NewClient(5 * time.Second),
		Orders:    orders,
		Processor: processor,
		Customers: stubCustomers{customer: host.Customer{
			ID:           7,
			Email:        "buyer@example.com",
			FirstName:    "Jordan",
			LastName:     "Smith",
			CountryCode:  "DEU",
			LanguageCode: "de",
		}},
		Attrs:   attrs,
		Pending: pending,
		Routes: host.BaseURLRoutes{
			BaseURL: "https://shop.example.com",
			Paths: map[string]string{
				skrill.RouteCheckoutCompleted:    "/checkout/completed/{orderId}",
				skrill.RouteOrderDetails:         "/order/details/{orderId}",
				skrill.RouteQuickCheckoutWebhook: "/webhooks/skrill/quick-checkout",
				skrill.RouteRefundWebhook:        "/webhooks/skrill/refund",
				skrill.RouteOrderPaidWebhook:     "/webhooks/skrill/order-paid",
			},
		},
		Rates: host.RateConverter{Base: "EUR", Rates: map[string]float64{"USD": 1.25}},
		Log:   zerolog.Nop(),
	}
	return &env{m: m, provider: provider, orders: orders, processor: processor, attrs: attrs, pending: pending}
}

func TestPrepareOrderCheckout(t *testing.T) {
	e := newEnv(t)

	redirectURL, err := e.m.PrepareOrderCheckout(context.Background(), 42)
	require.NoError(t, err)

	u, err := url.Parse(redirectURL)
	require.NoError(t, err)
	require.Equal(t, e.provider.sessionToken, u.Query().Get("sid"))

	require.Len(t, e.provider.sessionQueries, 1)
	q := e.provider.sessionQueries[0]
	require.Equal(t, "1", q.Get("prepare_only"))
	require.Equal(t, e.orders.order.Guid.String(), q.Get("transaction_id"))
	require.Equal(t, "https://shop.example.com/checkout/completed/42", q.Get("return_url"))
	require.Equal(t, "https://shop.example.com/order/details/42", q.Get("cancel_url"))
	require.Equal(t, "https://shop.example.com/webhooks/skrill/quick-checkout", q.Get("status_url"))
	require.Equal(t, "de", q.Get("language"))
	require.Equal(t, "19.5", q.Get("amount"))
	require.Equal(t, "15", q.Get("amount2"))
}

func TestPrepareOrderCheckoutSessionError(t *testing.T) {
	e := newEnv(t)
	e.provider.sessionErr = `{"code":"BAD_REQUEST","message":"Missing pay_to_email"}`

	_, err := e.m.PrepareOrderCheckout(context.Background(), 42)
	require.ErrorIs(t, err, skrill.ErrRemoteProtocol)
}

func TestPrepareInlineCheckout(t *testing.T) {
	e := newEnv(t)
	e.m.Flow = gateway.FlowInline

	result, err := e.m.PrepareInlineCheckout(context.Background(), gateway.InlineCheckoutRequest{
		CustomerID:   7,
		Total:        19.5,
		CurrencyCode: "EUR",
		Items:        []host.OrderItem{{Name: "Widget", Quantity: 1}},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.OrderGuid)

	pending, err := e.pending.Load(context.Background(), result.OrderGuid)
	require.NoError(t, err)
	require.Equal(t, int64(7), pending.CustomerID)

	require.Len(t, e.provider.sessionQueries, 1)
	q := e.provider.sessionQueries[0]
	require.Equal(t, result.OrderGuid.String(), q.Get("transaction_id"))
	require.Equal(t, "3", q.Get("return_url_target"))
	require.Equal(t, "7", q.Get("customer_id"))
	// the provider page sends the customer back to the completion probe
	require.Equal(t, "https://shop.example.com/webhooks/skrill/order-paid", q.Get("return_url"))
}

func TestRefundFull(t *testing.T) {
	e := newEnv(t)

	completed, err := e.m.Refund(context.Background(), 42, 0)
	require.NoError(t, err)
	require.True(t, completed)

	require.Len(t, e.provider.prepareQueries, 1)
	q := e.provider.prepareQueries[0]
	require.Equal(t, e.orders.order.Guid.String(), q.Get("transaction_id"))
	require.Equal(t, "2966121573", q.Get("mb_transaction_id"))
	require.Empty(t, q.Get("amount"))
	require.Equal(t, "refund_guid", q.Get("merchant_fields"))

	// the freshly minted guid must be persisted for the webhook comparison
	stored, err := e.attrs.Get(context.Background(), host.OrderSubject(42), skrill.RefundGuidAttribute)
	require.NoError(t, err)
	require.Equal(t, q.Get("refund_guid"), stored)

	require.Len(t, e.provider.confirmQueries, 1)
	require.Equal(t, "refund-sid-1", e.provider.confirmQueries[0].Get("sid"))
}

func TestRefundPartialConvertsCurrency(t *testing.T) {
	e := newEnv(t)

	// transaction settled in USD, store currency EUR, rate 1.25
	completed, err := e.m.Refund(context.Background(), 42, 5)
	require.NoError(t, err)
	require.True(t, completed)

	require.Len(t, e.provider.prepareQueries, 1)
	require.Equal(t, "6.25", e.provider.prepareQueries[0].Get("amount"))
}

func TestRefundPrepareRejected(t *testing.T) {
	e := newEnv(t)
	e.provider.prepareBody = "<response><error><error_msg>Account suspended</error_msg></error></response>"

	completed, err := e.m.Refund(context.Background(), 42, 0)
	require.False(t, completed)
	require.EqualError(t, err, "Refund order. Account suspended")
	require.Empty(t, e.provider.confirmQueries)
}

func TestRefundPendingConfirmation(t *testing.T) {
	e := newEnv(t)
	e.provider.confirmBody = "<response><status>0</status></response>"

	completed, err := e.m.Refund(context.Background(), 42, 0)
	require.NoError(t, err)
	require.False(t, completed)
}

func TestRefundWithoutCapture(t *testing.T) {
	e := newEnv(t)
	e.orders.order.CaptureTransactionID = ""

	_, err := e.m.Refund(context.Background(), 42, 0)
	require.Error(t, err)
	require.Empty(t, e.provider.prepareQueries)
}

func TestValidateCredentials(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.m.ValidateCredentials(context.Background()))

	e.provider.historyBody = "401\tCannot login"
	err := e.m.ValidateCredentials(context.Background())
	require.ErrorIs(t, err, skrill.ErrRemoteProtocol)

	e.provider.historyBody = "403\tCannot login from this remote ip address"
	err = e.m.ValidateCredentials(context.Background())
	require.Contains(t, err.Error(), "MQI and API address list")
}

func TestTransactionCurrencyCode(t *testing.T) {
	e := newEnv(t)

	code, err := e.m.TransactionCurrencyCode(context.Background(), "2966121573")
	require.NoError(t, err)
	require.Equal(t, "USD", code)
}

func TestUnconfiguredManagerMakesNoCalls(t *testing.T) {
	e := newEnv(t)
	e.m.Creds.SecretWord = ""

	_, err := e.m.PrepareOrderCheckout(context.Background(), 42)
	require.ErrorIs(t, err, gateway.ErrNotConfigured)

	_, err = e.m.Refund(context.Background(), 42, 0)
	require.ErrorIs(t, err, gateway.ErrNotConfigured)

	require.ErrorIs(t, e.m.ValidateCredentials(context.Background()), gateway.ErrNotConfigured)
	require.Empty(t, e.provider.sessionQueries)
	require.Empty(t, e.provider.prepareQueries)
}

func TestVerifyWebhook(t *testing.T) {
	e := newEnv(t)

	orderGuid := uuid.New().String()
	form := url.Values{}
	form.Set("merchant_id", "108301713")
	form.Set("transaction_id", orderGuid)
	form.Set("mb_amount", "19.5")
	form.Set("mb_currency", "EUR")
	form.Set("status", skrill.StatusProcessed)
	form.Set("md5sig", skrill.Sign("secret-word", "108301713", orderGuid, "19.5", "EUR", skrill.StatusProcessed))

	require.NoError(t, e.m.VerifyWebhook(context.Background(), form))

	form.Set("md5sig", "00000000000000000000000000000000")
	require.ErrorIs(t, e.m.VerifyWebhook(context.Background(), form), skrill.ErrInvalidSignature)
}
