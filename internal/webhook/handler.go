// Package webhook serves the inbound provider callbacks. The external
// contract is strict: any request that passes signature verification is
// acknowledged with 200, whatever happens internally. Internal failures
// are logged and counted instead of surfacing to the provider, which would
// otherwise retry indefinitely.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/commercekit/skrill-gateway/internal/gateway"
	"github.com/commercekit/skrill-gateway/internal/host"
	"github.com/commercekit/skrill-gateway/internal/obs"
	"github.com/commercekit/skrill-gateway/internal/skrill"
)

const (
	kindQuickCheckout = "quick_checkout"
	kindRefund        = "refund"
	kindOrderPaid     = "order_paid"
)

// Handler serves the provider callback endpoints.
type Handler struct {
	M   *gateway.Manager
	Log zerolog.Logger
}

// Mount registers the callback routes. The order-paid endpoint also
// serves the inline flow's return_url, which the provider page hits with
// a GET.
func (h Handler) Mount(r chi.Router) {
	r.Post("/webhooks/skrill/quick-checkout", h.QuickCheckout)
	r.Post("/webhooks/skrill/refund", h.Refund)
	r.Get("/webhooks/skrill/order-paid", h.OrderPaid)
	r.Post("/webhooks/skrill/order-paid", h.OrderPaid)
}

func callbackResult(kind, result string) {
	if obs.CallbackTotal != nil {
		obs.CallbackTotal.WithLabelValues(kind, result).Inc()
	}
}

func (h Handler) suppress(kind, stage string, err error) {
	h.Log.Error().Err(err).Str("kind", kind).Str("stage", stage).
		Msg("callback processing failed, acknowledged anyway")
	if obs.CallbackSuppressedErrors != nil {
		obs.CallbackSuppressedErrors.WithLabelValues(kind, stage).Inc()
	}
}

// QuickCheckout processes payment status callbacks: failures, pending
// notifications and captures. Signature failures are the only 400; every
// verified callback is acknowledged with 200 no matter how processing
// goes.
func (h Handler) QuickCheckout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || h.M.VerifyWebhook(r.Context(), r.PostForm) != nil {
		callbackResult(kindQuickCheckout, "rejected")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.processQuickCheckout(r.Context(), r.PostForm)
	w.WriteHeader(http.StatusOK)
}

func (h Handler) processQuickCheckout(ctx context.Context, form map[string][]string) {
	get := formGetter(form)
	status := get("status")

	order, found, err := h.resolveOrder(ctx, get("transaction_id"))
	if err != nil {
		h.suppress(kindQuickCheckout, "order_lookup", err)
		callbackResult(kindQuickCheckout, "error")
		return
	}
	if !found {
		// inline flow: the capture callback can arrive before the order is
		// placed; park the transaction id on the customer until PostProcess
		if status == skrill.StatusProcessed && get("customer_id") != "" {
			if err := h.bridgeCapture(ctx, get("customer_id"), get("mb_transaction_id")); err != nil {
				h.suppress(kindQuickCheckout, "capture_bridge", err)
				callbackResult(kindQuickCheckout, "error")
				return
			}
			callbackResult(kindQuickCheckout, "bridged")
			return
		}
		h.suppress(kindQuickCheckout, "order_lookup",
			fmt.Errorf("no order for transaction_id %q", get("transaction_id")))
		callbackResult(kindQuickCheckout, "unmatched")
		return
	}

	if err := h.M.Orders.AddOrderNote(ctx, order.ID, formDump(form)); err != nil {
		h.suppress(kindQuickCheckout, "order_note", err)
	}

	switch status {
	case skrill.StatusChargeback, skrill.StatusFailed, skrill.StatusCancelled:
		h.handleFailed(ctx, order, get("failed_reason_code"))
		callbackResult(kindQuickCheckout, "failed")
	case skrill.StatusPending:
		if err := h.M.Orders.SetPaymentPending(ctx, order.ID); err != nil {
			h.suppress(kindQuickCheckout, "set_pending", err)
			callbackResult(kindQuickCheckout, "error")
			return
		}
		if err := h.M.Processor.CheckOrderStatus(ctx, order.ID); err != nil {
			h.suppress(kindQuickCheckout, "check_status", err)
			callbackResult(kindQuickCheckout, "error")
			return
		}
		callbackResult(kindQuickCheckout, "pending")
	case skrill.StatusProcessed:
		h.handleProcessed(ctx, order, get("mb_transaction_id"))
	default:
		callbackResult(kindQuickCheckout, "ignored")
	}
}

func (h Handler) handleFailed(ctx context.Context, order host.Order, reasonCode string) {
	// non-numeric reason codes skip the note; the cancellation still runs
	if reason, ok := skrill.FailedReason(reasonCode); ok {
		note := fmt.Sprintf("Order payment failed. Reason: %s", reason)
		if err := h.M.Orders.AddOrderNote(ctx, order.ID, note); err != nil {
			h.suppress(kindQuickCheckout, "order_note", err)
		}
	}
	if h.M.Processor.CanCancelOrder(order) {
		if err := h.M.Processor.CancelOrder(ctx, order.ID); err != nil {
			h.suppress(kindQuickCheckout, "cancel_order", err)
		}
	}
}

func (h Handler) handleProcessed(ctx context.Context, order host.Order, mbTransactionID string) {
	if !h.M.Processor.CanMarkOrderAsPaid(order) {
		callbackResult(kindQuickCheckout, "ignored")
		return
	}
	if err := h.M.Orders.SetCaptureTransactionID(ctx, order.ID, mbTransactionID); err != nil {
		h.suppress(kindQuickCheckout, "set_capture", err)
		callbackResult(kindQuickCheckout, "error")
		return
	}
	if err := h.M.Processor.MarkOrderAsPaid(ctx, order.ID); err != nil {
		h.suppress(kindQuickCheckout, "mark_paid", err)
		callbackResult(kindQuickCheckout, "error")
		return
	}
	callbackResult(kindQuickCheckout, "paid")
}

// Refund processes refund status callbacks. The refund_guid attribute makes
// duplicate deliveries no-ops: the offline refund runs only when the
// incoming guid differs from the stored one, checked and swapped
// atomically.
func (h Handler) Refund(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || h.M.VerifyWebhook(r.Context(), r.PostForm) != nil {
		callbackResult(kindRefund, "rejected")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.processRefund(r.Context(), r.PostForm)
	w.WriteHeader(http.StatusOK)
}

func (h Handler) processRefund(ctx context.Context, form map[string][]string) {
	get := formGetter(form)

	order, found, err := h.resolveOrder(ctx, get("transaction_id"))
	if err != nil || !found {
		if err == nil {
			err = fmt.Errorf("no order for transaction_id %q", get("transaction_id"))
		}
		h.suppress(kindRefund, "order_lookup", err)
		callbackResult(kindRefund, "unmatched")
		return
	}

	if err := h.M.Orders.AddOrderNote(ctx, order.ID, formDump(form)); err != nil {
		h.suppress(kindRefund, "order_note", err)
	}

	switch get("status") {
	case skrill.StatusProcessed:
		incoming := strings.ToLower(strings.TrimSpace(get("refund_guid")))
		changed, err := h.M.Attrs.SetIfChanged(ctx, host.OrderSubject(order.ID), skrill.RefundGuidAttribute, incoming)
		if err != nil {
			h.suppress(kindRefund, "refund_guid", err)
			callbackResult(kindRefund, "error")
			return
		}
		if !changed {
			callbackResult(kindRefund, "duplicate")
			return
		}
		h.applyRefund(ctx, order, get("mb_amount"), get("mb_currency"))
	case skrill.StatusFailed:
		if err := h.M.Orders.AddOrderNote(ctx, order.ID, "Order refund failed."); err != nil {
			h.suppress(kindRefund, "order_note", err)
		}
		callbackResult(kindRefund, "failed")
	default:
		callbackResult(kindRefund, "ignored")
	}
}

func (h Handler) applyRefund(ctx context.Context, order host.Order, rawAmount, currency string) {
	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil {
		h.suppress(kindRefund, "amount_parse", fmt.Errorf("mb_amount %q: %w", rawAmount, err))
		callbackResult(kindRefund, "error")
		return
	}
	if h.M.Rates != nil && currency != "" && !strings.EqualFold(currency, order.CurrencyCode) {
		converted, err := h.M.Rates.Convert(ctx, amount, currency, order.CurrencyCode)
		if err != nil {
			h.suppress(kindRefund, "amount_convert", err)
			callbackResult(kindRefund, "error")
			return
		}
		amount = converted
	}
	if !h.M.Processor.CanPartiallyRefundOffline(order, amount) {
		callbackResult(kindRefund, "ignored")
		return
	}
	if err := h.M.Processor.PartiallyRefundOffline(ctx, order.ID, amount); err != nil {
		h.suppress(kindRefund, "refund_offline", err)
		callbackResult(kindRefund, "error")
		return
	}
	callbackResult(kindRefund, "refunded")
}

// OrderPaid answers the inline flow's completion probe: the storefront
// polls it while waiting for the capture callback, and the provider page
// hits it as the return_url. It is a plain lookup keyed by transaction_id
// (query or body), unsigned, replying "Ok" while the pending checkout
// exists and "Invalid" otherwise, with no side effects.
func (h Handler) OrderPaid(w http.ResponseWriter, r *http.Request) {
	answer := func(ok bool) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if ok {
			callbackResult(kindOrderPaid, "ok")
			_, _ = w.Write([]byte("Ok"))
			return
		}
		callbackResult(kindOrderPaid, "invalid")
		_, _ = w.Write([]byte("Invalid"))
	}

	if err := r.ParseForm(); err != nil {
		answer(false)
		return
	}
	orderGuid, err := uuid.Parse(r.Form.Get("transaction_id"))
	if err != nil {
		answer(false)
		return
	}
	if _, err := h.M.Pending.Load(r.Context(), orderGuid); err != nil {
		answer(false)
		return
	}
	answer(true)
}

// resolveOrder finds the order a callback refers to, by guid or by the
// legacy numeric id.
func (h Handler) resolveOrder(ctx context.Context, transactionID string) (host.Order, bool, error) {
	if guid, err := uuid.Parse(transactionID); err == nil {
		order, err := h.M.Orders.OrderByGuid(ctx, guid)
		if err != nil {
			if isNotFound(err) {
				return host.Order{}, false, nil
			}
			return host.Order{}, false, err
		}
		return order, true, nil
	}
	id, err := strconv.ParseInt(transactionID, 10, 64)
	if err != nil {
		return host.Order{}, false, fmt.Errorf("malformed transaction_id %q", transactionID)
	}
	order, err := h.M.Orders.OrderByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return host.Order{}, false, nil
		}
		return host.Order{}, false, err
	}
	return order, true, nil
}

func (h Handler) bridgeCapture(ctx context.Context, rawCustomerID, mbTransactionID string) error {
	customerID, err := strconv.ParseInt(rawCustomerID, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed customer_id %q", rawCustomerID)
	}
	return h.M.Attrs.Set(ctx, host.CustomerSubject(customerID), skrill.PaymentTransactionIDAttribute, mbTransactionID)
}

func isNotFound(err error) bool {
	return errors.Is(err, host.ErrNotFound)
}

func formGetter(form map[string][]string) func(string) string {
	return func(key string) string {
		values := form[key]
		if len(values) == 0 {
			return ""
		}
		return values[0]
	}
}

// formDump renders the whole callback form as an order-note audit line.
func formDump(form map[string][]string) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	get := formGetter(form)
	var b strings.Builder
	b.WriteString("Skrill callback. ")
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %s; ", key, get(key))
	}
	return strings.TrimSpace(b.String())
}
