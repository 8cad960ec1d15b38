package skrill

import (
	"encoding/xml"
	"fmt"
	"net/url"
)

// RefundParams holds the fields of a refund prepare request. Amount is empty
// for a full refund.
type RefundParams struct {
	MerchantEmail   string
	PasswordMD5     string // lowercase MD5 of the API password
	TransactionID   string // order GUID submitted with the original payment
	MBTransactionID string // provider capture transaction id
	Amount          string // formatted, empty for full refund
	RefundGuid      string // idempotency token echoed back by the webhook
	RefundStatusURL string
}

// BuildRefundPrepareURL assembles phase one of the refund protocol.
func (e Endpoints) BuildRefundPrepareURL(p RefundParams) string {
	q := url.Values{}
	q.Set("action", "prepare")
	q.Set("email", p.MerchantEmail)
	q.Set("password", p.PasswordMD5)
	q.Set("transaction_id", p.TransactionID)
	q.Set("mb_transaction_id", p.MBTransactionID)
	q.Set("amount", p.Amount)
	q.Set("merchant_fields", Truncate("refund_guid", 240))
	q.Set("refund_guid", Truncate(p.RefundGuid, 240))
	q.Set("refund_status_url", p.RefundStatusURL)
	return e.Refund + "?" + q.Encode()
}

// BuildRefundConfirmURL assembles phase two carrying the session id.
func (e Endpoints) BuildRefundConfirmURL(sessionID string) string {
	q := url.Values{}
	q.Set("action", "refund")
	q.Set("sid", sessionID)
	return e.Refund + "?" + q.Encode()
}

type refundPrepareResponse struct {
	SID   string `xml:"sid"`
	Error struct {
		ErrorMsg string `xml:"error_msg"`
	} `xml:"error"`
}

type refundConfirmResponse struct {
	Status string `xml:"status"`
	Error  string `xml:"error"`
}

// ParseRefundPrepare extracts the session id from the prepare response XML.
// A missing sid yields the embedded error message, or "Response is empty".
func ParseRefundPrepare(body string) (string, error) {
	var resp refundPrepareResponse
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		return "", fmt.Errorf("Refund order. %s", "Response is empty")
	}
	if resp.SID == "" {
		msg := resp.Error.ErrorMsg
		if msg == "" {
			msg = "Response is empty"
		}
		return "", fmt.Errorf("Refund order. %s", msg)
	}
	return resp.SID, nil
}

// ParseRefundConfirm interprets the confirm response: status 2 means the
// refund completed synchronously, -2 is a hard failure, anything else is
// pending and completes later via the refund webhook.
func ParseRefundConfirm(body string) (completed bool, err error) {
	var resp refundConfirmResponse
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		return false, fmt.Errorf("Refund order. %s", "Error")
	}
	switch resp.Status {
	case StatusProcessed:
		return true, nil
	case StatusFailed:
		msg := resp.Error
		if msg == "" {
			msg = "Error"
		}
		return false, fmt.Errorf("Refund order. %s", msg)
	default:
		return false, nil
	}
}
