package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commercekit/skrill-gateway/internal/common"
	"github.com/commercekit/skrill-gateway/internal/host"
	"github.com/commercekit/skrill-gateway/internal/skrill"
)

// Handler exposes the host-facing HTTP endpoints: checkout session
// preparation, refunds and credential validation.
type Handler struct {
	M *Manager
}

// Mount registers the host-facing API routes.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/api/checkout/orders/{orderId}/session", h.OrderSession)
	r.Post("/api/checkout/inline-session", h.InlineSession)
	r.Post("/api/orders/{orderId}/refund", h.Refund)
	r.Get("/api/credentials/validate", h.ValidateCredentials)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "payment method is not configured", nil)
	case errors.Is(err, ErrMissingEntity):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, skrill.ErrRemoteProtocol):
		common.JSONError(w, http.StatusBadGateway, "PROVIDER_ERROR", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusBadRequest, "REQUEST_FAILED", err.Error(), nil)
	}
}

func orderIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	return strconv.ParseInt(raw, 10, 64)
}

// OrderSession prepares a hosted-page session for a placed order and
// returns the redirect URL.
func (h *Handler) OrderSession(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid orderId", nil)
		return
	}
	redirectURL, err := h.M.PrepareOrderCheckout(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"redirectUrl": redirectURL})
}

type inlineSessionReq struct {
	CustomerID   int64            `json:"customerId"`
	Total        float64          `json:"total"`
	CurrencyCode string           `json:"currencyCode"`
	Items        []host.OrderItem `json:"items"`
}

type inlineSessionResp struct {
	PaymentURL string    `json:"paymentUrl"`
	OrderGuid  uuid.UUID `json:"orderGuid"`
}

// InlineSession prepares an embedded payment session for a cart that has
// not been placed as an order yet.
func (h *Handler) InlineSession(w http.ResponseWriter, r *http.Request) {
	var req inlineSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if req.CustomerID <= 0 || req.Total <= 0 || strings.TrimSpace(req.CurrencyCode) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "customerId, total and currencyCode are required", nil)
		return
	}
	result, err := h.M.PrepareInlineCheckout(r.Context(), InlineCheckoutRequest{
		CustomerID:   req.CustomerID,
		Total:        req.Total,
		CurrencyCode: req.CurrencyCode,
		Items:        req.Items,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, inlineSessionResp{PaymentURL: result.PaymentURL, OrderGuid: result.OrderGuid})
}

type refundReq struct {
	// Amount in the store currency; zero requests a full refund.
	Amount float64 `json:"amount"`
}

// Refund starts a provider refund for the order.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDParam(r)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid orderId", nil)
		return
	}
	var req refundReq
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
			return
		}
	}
	if req.Amount < 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "amount must not be negative", nil)
		return
	}
	completed, err := h.M.Refund(r.Context(), orderID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

// ValidateCredentials probes the merchant query interface with the
// configured credentials.
func (h *Handler) ValidateCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.M.ValidateCredentials(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": "valid"})
}
