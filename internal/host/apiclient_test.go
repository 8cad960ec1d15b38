package host_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/skrill-gateway/internal/host"
)

func TestAPIClientOrders(t *testing.T) {
	guid := uuid.New()
	var lastAuth string
	var lastNote string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/internal/orders/by-guid/" + guid.String(), "/internal/orders/42":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":            42,
				"guid":          guid,
				"customerId":    7,
				"total":         19.5,
				"currencyCode":  "EUR",
				"paymentStatus": "paid",
				"items":         []map[string]any{{"name": "Widget", "quantity": 2}},
			})
		case "/internal/orders/42/notes":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			lastNote = body["note"]
			w.WriteHeader(http.StatusNoContent)
		case "/internal/orders/999":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := host.NewAPIClient(srv.URL, "hunter2", time.Second)
	ctx := context.Background()

	order, err := client.OrderByGuid(ctx, guid)
	require.NoError(t, err)
	require.Equal(t, int64(42), order.ID)
	require.Equal(t, host.PaymentPaid, order.PaymentStatus)
	require.Len(t, order.Items, 1)
	require.Equal(t, "Bearer hunter2", lastAuth)

	byID, err := client.OrderByID(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, order.Guid, byID.Guid)

	require.NoError(t, client.AddOrderNote(ctx, 42, "hello"))
	require.Equal(t, "hello", lastNote)

	_, err = client.OrderByID(ctx, 999)
	require.ErrorIs(t, err, host.ErrNotFound)
}

func TestAPIClientProcessorGuards(t *testing.T) {
	client := host.NewAPIClient("http://host.invalid", "", time.Second)

	paid := host.Order{Total: 20, PaymentStatus: host.PaymentPaid}
	pending := host.Order{Total: 20, PaymentStatus: host.PaymentPending}

	require.True(t, client.CanMarkOrderAsPaid(pending))
	require.False(t, client.CanMarkOrderAsPaid(paid))

	require.True(t, client.CanCancelOrder(pending))
	require.False(t, client.CanCancelOrder(paid))

	require.True(t, client.CanPartiallyRefundOffline(paid, 5))
	require.False(t, client.CanPartiallyRefundOffline(paid, 25))
	require.False(t, client.CanPartiallyRefundOffline(paid, 0))
	require.False(t, client.CanPartiallyRefundOffline(pending, 5))
}

func TestAPIClientCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/internal/customers/7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          7,
			"email":       "jo@example.com",
			"firstName":   "Jo",
			"dateOfBirth": "1990-04-01",
			"countryCode": "DEU",
		})
	}))
	defer srv.Close()

	client := host.NewAPIClient(srv.URL, "", time.Second)
	customer, err := client.Customer(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "jo@example.com", customer.Email)
	require.Equal(t, "DEU", customer.CountryCode)
	require.Equal(t, 1990, customer.DateOfBirth.Year())
}
