package skrill

import "strconv"

// Transaction status codes reported by callbacks and refund responses.
const (
	StatusChargeback = "-3"
	StatusFailed     = "-2"
	StatusCancelled  = "-1"
	StatusPending    = "0"
	StatusProcessed  = "2"
)

// failedReasons maps the provider's failed_reason_code values to readable
// descriptions recorded in order notes.
var failedReasons = map[int]string{
	1:  "Referred by card issuer",
	2:  "Invalid merchant",
	3:  "Pick-up card",
	4:  "Declined by card issuer",
	5:  "Insufficient funds",
	6:  "Merchant/processor declined",
	7:  "Incorrect PIN",
	8:  "PIN tries exceeded, card blocked",
	9:  "Invalid transaction",
	10: "Transaction frequency limit exceeded",
	11: "Invalid amount format or limit exceeded",
	12: "Invalid credit card or bank account",
	13: "Invalid card issuer",
	15: "Duplicate transaction reference",
	19: "Request not authorized",
	20: "Member is in a blocked country or region",
	22: "Unsupported accept header or content type",
	24: "Card expired",
	27: "Requested API function not supported",
	28: "Lost or stolen card",
	30: "Format failure",
	32: "Card security code check failed",
	34: "Illegal transaction",
	35: "Unauthorized access",
	37: "Card restricted by card issuer",
	38: "Security violation",
	42: "Card blocked by card issuer",
	44: "Card issuing bank or network is not available",
	45: "Processing error",
	51: "System error",
	58: "Transaction not permitted by acquirer",
	63: "Transaction not permitted for cardholder",
	64: "Bad request",
	67: "BitPay session expired",
	68: "Referenced transaction has not been settled",
	69: "Referenced transaction is not fully authenticated",
	70: "Customer failed 3DS verification",
	80: "Fraud rules declined",
	98: "Error in communication with provider",
	99: "Other",
}

// FailedReason resolves a failed_reason_code form value to a readable
// description. Numeric codes without a mapping resolve to the code itself;
// the second result reports whether the value parsed as a code at all.
func FailedReason(code string) (string, bool) {
	n, err := strconv.Atoi(code)
	if err != nil {
		return "", false
	}
	if reason, ok := failedReasons[n]; ok {
		return reason, true
	}
	return strconv.Itoa(n), true
}
