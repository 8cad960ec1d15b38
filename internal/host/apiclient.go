package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIClient talks to the commerce platform's internal REST API. It
// implements OrderService, OrderProcessor and CustomerService so the
// gateway can run as a sidecar to a remote host instead of in-process.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient builds a client for the host platform API at baseURL.
// token, when non-empty, is sent as a bearer token on every request.
func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type orderDTO struct {
	ID                   int64     `json:"id"`
	Guid                 uuid.UUID `json:"guid"`
	CustomerID           int64     `json:"customerId"`
	Total                float64   `json:"total"`
	Subtotal             float64   `json:"subtotal"`
	ShippingTotal        float64   `json:"shippingTotal"`
	TaxTotal             float64   `json:"taxTotal"`
	CurrencyCode         string    `json:"currencyCode"`
	CaptureTransactionID string    `json:"captureTransactionId"`
	PaymentStatus        string    `json:"paymentStatus"`
	Items                []struct {
		Name             string `json:"name"`
		ShortDescription string `json:"shortDescription"`
		Quantity         int    `json:"quantity"`
	} `json:"items"`
}

var paymentStatusNames = map[string]PaymentStatus{
	"pending":            PaymentPending,
	"authorized":         PaymentAuthorized,
	"paid":               PaymentPaid,
	"partially_refunded": PaymentPartiallyRefunded,
	"refunded":           PaymentRefunded,
	"voided":             PaymentVoided,
}

func (d orderDTO) toOrder() Order {
	order := Order{
		ID:                   d.ID,
		Guid:                 d.Guid,
		CustomerID:           d.CustomerID,
		Total:                d.Total,
		Subtotal:             d.Subtotal,
		ShippingTotal:        d.ShippingTotal,
		TaxTotal:             d.TaxTotal,
		CurrencyCode:         d.CurrencyCode,
		CaptureTransactionID: d.CaptureTransactionID,
		PaymentStatus:        paymentStatusNames[strings.ToLower(d.PaymentStatus)],
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, OrderItem{
			Name:             item.Name,
			ShortDescription: item.ShortDescription,
			Quantity:         item.Quantity,
		})
	}
	return order
}

type customerDTO struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	DateOfBirth  string `json:"dateOfBirth"`
	Address      string `json:"address"`
	Address2     string `json:"address2"`
	Phone        string `json:"phone"`
	PostalCode   string `json:"postalCode"`
	City         string `json:"city"`
	State        string `json:"state"`
	CountryCode  string `json:"countryCode"`
	LanguageCode string `json:"languageCode"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("host api: encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("host api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("host api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("host api: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("host api: decode %s: %w", path, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// OrderByGuid fetches the order that was submitted with the given guid.
func (c *APIClient) OrderByGuid(ctx context.Context, guid uuid.UUID) (Order, error) {
	var dto orderDTO
	if err := c.do(ctx, http.MethodGet, "/internal/orders/by-guid/"+guid.String(), nil, &dto); err != nil {
		return Order{}, err
	}
	return dto.toOrder(), nil
}

// OrderByID fetches an order by its numeric host id.
func (c *APIClient) OrderByID(ctx context.Context, id int64) (Order, error) {
	var dto orderDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/internal/orders/%d", id), nil, &dto); err != nil {
		return Order{}, err
	}
	return dto.toOrder(), nil
}

// AddOrderNote appends a note to the order's audit trail.
func (c *APIClient) AddOrderNote(ctx context.Context, orderID int64, note string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/internal/orders/%d/notes", orderID), map[string]string{"note": note}, nil)
}

// SetCaptureTransactionID records the provider transaction id on the order.
func (c *APIClient) SetCaptureTransactionID(ctx context.Context, orderID int64, captureID string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/internal/orders/%d/capture-transaction", orderID), map[string]string{"captureTransactionId": captureID}, nil)
}

// SetPaymentPending moves the order payment status back to pending.
func (c *APIClient) SetPaymentPending(ctx context.Context, orderID int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/internal/orders/%d/payment-pending", orderID), nil, nil)
}

// CanMarkOrderAsPaid mirrors the host's guard: only orders whose payment
// is still open may be captured.
func (c *APIClient) CanMarkOrderAsPaid(order Order) bool {
	switch order.PaymentStatus {
	case PaymentPending, PaymentAuthorized:
		return true
	default:
		return false
	}
}

// MarkOrderAsPaid transitions the order to paid on the host.
func (c *APIClient) MarkOrderAsPaid(ctx context.Context, orderID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/internal/orders/%d/mark-paid", orderID), nil, nil)
}

// CanCancelOrder reports whether the host would accept a cancellation.
func (c *APIClient) CanCancelOrder(order Order) bool {
	switch order.PaymentStatus {
	case PaymentPaid, PaymentPartiallyRefunded, PaymentRefunded:
		return false
	default:
		return true
	}
}

// CancelOrder cancels the order on the host.
func (c *APIClient) CancelOrder(ctx context.Context, orderID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/internal/orders/%d/cancel", orderID), nil, nil)
}

// CanPartiallyRefundOffline reports whether the amount can be booked as
// refunded without another provider call.
func (c *APIClient) CanPartiallyRefundOffline(order Order, amount float64) bool {
	if amount <= 0 || amount > order.Total {
		return false
	}
	switch order.PaymentStatus {
	case PaymentPaid, PaymentPartiallyRefunded:
		return true
	default:
		return false
	}
}

// PartiallyRefundOffline books a refunded amount on the host without
// touching the provider.
func (c *APIClient) PartiallyRefundOffline(ctx context.Context, orderID int64, amount float64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/internal/orders/%d/refund-offline", orderID), map[string]float64{"amount": amount}, nil)
}

// CheckOrderStatus asks the host to re-evaluate derived order state.
func (c *APIClient) CheckOrderStatus(ctx context.Context, orderID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/internal/orders/%d/check-status", orderID), nil, nil)
}

// Customer fetches billing details for a customer.
func (c *APIClient) Customer(ctx context.Context, id int64) (Customer, error) {
	var dto customerDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/internal/customers/%d", id), nil, &dto); err != nil {
		return Customer{}, err
	}
	customer := Customer{
		ID:           dto.ID,
		Email:        dto.Email,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Address:      dto.Address,
		Address2:     dto.Address2,
		Phone:        dto.Phone,
		PostalCode:   dto.PostalCode,
		City:         dto.City,
		State:        dto.State,
		CountryCode:  dto.CountryCode,
		LanguageCode: dto.LanguageCode,
	}
	if dto.DateOfBirth != "" {
		if dob, err := time.Parse("2006-01-02", dto.DateOfBirth); err == nil {
			customer.DateOfBirth = dob
		}
	}
	return customer, nil
}
