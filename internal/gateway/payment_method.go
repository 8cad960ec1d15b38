package gateway

import (
	"context"
	"fmt"

	"github.com/commercekit/skrill-gateway/internal/host"
	"github.com/commercekit/skrill-gateway/internal/skrill"
)

// View component names the host renders for this payment method.
const (
	PaymentInfoComponent     = "SkrillPaymentInfo"
	InlinePaymentComponent   = "SkrillInlineCheckout"
	RedirectPaymentComponent = "SkrillRedirect"
)

// ProcessPaymentResult is what the host records when an order is placed
// with this payment method.
type ProcessPaymentResult struct {
	CaptureTransactionID string
	NewPaymentStatus     host.PaymentStatus
}

// PostProcessResult tells the host what to do right after order placement:
// redirect the customer, or nothing when the payment already happened
// inline.
type PostProcessResult struct {
	RedirectURL string
}

// PaymentMethod adapts the Manager to the host's payment-method contract.
type PaymentMethod struct {
	M *Manager
}

// PaymentInfoComponentName names the checkout widget for the configured
// flow.
func (p PaymentMethod) PaymentInfoComponentName() string {
	if p.M.Flow == FlowInline {
		return InlinePaymentComponent
	}
	return RedirectPaymentComponent
}

// ProcessPayment runs at order placement. Nothing is captured here; the
// capture either already happened (inline flow, settled by PostProcess) or
// will happen on the provider page after the redirect. The order starts
// pending either way.
func (p PaymentMethod) ProcessPayment(ctx context.Context, orderGuid string) (ProcessPaymentResult, error) {
	return ProcessPaymentResult{NewPaymentStatus: host.PaymentPending}, nil
}

// PostProcess runs right after the order is persisted. Redirect flow sends
// the customer to the provider page. Inline flow consumes the capture
// transaction id the callback bridged through a customer attribute while
// the order did not exist yet, and marks the order paid.
func (p PaymentMethod) PostProcess(ctx context.Context, order host.Order) (PostProcessResult, error) {
	return perform(ctx, p.M, "PostProcess", func(ctx context.Context) (PostProcessResult, error) {
		if p.M.Flow != FlowInline {
			redirectURL, err := p.M.PrepareOrderCheckout(ctx, order.ID)
			if err != nil {
				return PostProcessResult{}, err
			}
			return PostProcessResult{RedirectURL: redirectURL}, nil
		}

		subject := host.CustomerSubject(order.CustomerID)
		captureID, err := p.M.Attrs.Get(ctx, subject, skrill.PaymentTransactionIDAttribute)
		if err != nil {
			return PostProcessResult{}, err
		}
		if captureID == "" {
			// payment callback has not arrived yet; the webhook will
			// settle the order once it does
			return PostProcessResult{}, nil
		}
		if err := p.M.Orders.SetCaptureTransactionID(ctx, order.ID, captureID); err != nil {
			return PostProcessResult{}, err
		}
		order.CaptureTransactionID = captureID
		if p.M.Processor.CanMarkOrderAsPaid(order) {
			if err := p.M.Processor.MarkOrderAsPaid(ctx, order.ID); err != nil {
				return PostProcessResult{}, err
			}
		}
		if err := p.M.Attrs.Delete(ctx, subject, skrill.PaymentTransactionIDAttribute); err != nil {
			return PostProcessResult{}, err
		}
		if err := p.M.Pending.Delete(ctx, order.Guid); err != nil {
			return PostProcessResult{}, err
		}
		return PostProcessResult{}, nil
	})
}

// CanRePostProcess reports whether the customer may retry the provider
// redirect for an order that is still unpaid.
func (p PaymentMethod) CanRePostProcess(order host.Order) bool {
	return p.M.Flow == FlowRedirect && order.PaymentStatus == host.PaymentPending
}

// RefundOrder starts a provider refund for the order, full when amount is
// zero. The boolean mirrors Manager.Refund: true means the provider
// confirmed synchronously, false with nil error means the refund webhook
// completes it later.
func (p PaymentMethod) RefundOrder(ctx context.Context, orderID int64, amount float64) (bool, error) {
	completed, err := p.M.Refund(ctx, orderID, amount)
	if err != nil {
		return false, fmt.Errorf("refund order %d: %w", orderID, err)
	}
	return completed, nil
}
