package gateway_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/skrill-gateway/internal/gateway"
)

func newAPIServer(t *testing.T, e *env) *httptest.Server {
	t.Helper()
	router := chi.NewRouter()
	handler := &gateway.Handler{M: e.m}
	handler.Mount(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestOrderSessionEndpoint(t *testing.T) {
	e := newEnv(t)
	srv := newAPIServer(t, e)

	resp, err := http.Post(srv.URL+"/api/checkout/orders/42/session", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body["redirectUrl"], "sid="+e.provider.sessionToken)
}

func TestOrderSessionEndpointUnknownOrder(t *testing.T) {
	e := newEnv(t)
	srv := newAPIServer(t, e)

	resp, err := http.Post(srv.URL+"/api/checkout/orders/999/session", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInlineSessionEndpoint(t *testing.T) {
	e := newEnv(t)
	e.m.Flow = gateway.FlowInline
	srv := newAPIServer(t, e)

	payload := `{"customerId":7,"total":19.5,"currencyCode":"EUR","items":[{"Name":"Widget","Quantity":1}]}`
	resp, err := http.Post(srv.URL+"/api/checkout/inline-session", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		PaymentURL string `json:"paymentUrl"`
		OrderGuid  string `json:"orderGuid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.PaymentURL)
	require.NotEmpty(t, body.OrderGuid)
}

func TestInlineSessionEndpointRejectsBadBody(t *testing.T) {
	e := newEnv(t)
	srv := newAPIServer(t, e)

	resp, err := http.Post(srv.URL+"/api/checkout/inline-session", "application/json", strings.NewReader(`{"total":0}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefundEndpoint(t *testing.T) {
	e := newEnv(t)
	srv := newAPIServer(t, e)

	resp, err := http.Post(srv.URL+"/api/orders/42/refund", "application/json", strings.NewReader(`{"amount":0}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body["completed"])
}

func TestRefundEndpointProviderRejection(t *testing.T) {
	e := newEnv(t)
	e.provider.prepareBody = "<response><error><error_msg>Account suspended</error_msg></error></response>"
	srv := newAPIServer(t, e)

	resp, err := http.Post(srv.URL+"/api/orders/42/refund", "application/json", strings.NewReader(`{"amount":0}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateCredentialsEndpoint(t *testing.T) {
	e := newEnv(t)
	srv := newAPIServer(t, e)

	resp, err := http.Get(srv.URL + "/api/credentials/validate")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e.provider.historyBody = "401\tCannot login"
	resp, err = http.Get(srv.URL + "/api/credentials/validate")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestEndpointsUnconfigured(t *testing.T) {
	e := newEnv(t)
	e.m.Creds.MerchantEmail = ""
	srv := newAPIServer(t, e)

	resp, err := http.Post(srv.URL+"/api/checkout/orders/42/session", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
