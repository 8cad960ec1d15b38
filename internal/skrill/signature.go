package skrill

import (
	"crypto/md5"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidSignature is returned when a webhook callback fails authentication.
var ErrInvalidSignature = errors.New("skrill: invalid webhook signature")

// MD5Hex returns the uppercase hex MD5 digest of the input, or an empty
// string for empty input.
func MD5Hex(value string) string {
	if value == "" {
		return ""
	}
	sum := md5.Sum([]byte(value))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

// Sign computes the callback signature over the fixed field concatenation:
// merchant_id + transaction_id + MD5(secret word) uppercased + mb_amount +
// mb_currency + status. This is the provider's shared-secret scheme, not an
// HMAC; the inner hash-then-concatenate order is part of the wire protocol.
func Sign(secretWord, merchantID, transactionID, amount, currency, status string) string {
	hashedSecret := MD5Hex(secretWord)
	return MD5Hex(merchantID + transactionID + hashedSecret + amount + currency + status)
}

// VerifySignature authenticates an inbound callback form. The comparison is
// case-insensitive. The transaction id must parse as an order GUID or, for
// legacy deployments, a numeric order id.
func VerifySignature(form url.Values, secretWord string) error {
	if len(form) == 0 {
		return fmt.Errorf("%w: request form is empty", ErrInvalidSignature)
	}
	signature := form.Get("md5sig")
	if signature == "" {
		return fmt.Errorf("%w: request not signed by a signature parameter", ErrInvalidSignature)
	}
	transactionID, err := normalizeTransactionID(form.Get("transaction_id"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	expected := Sign(secretWord,
		form.Get("merchant_id"),
		transactionID,
		form.Get("mb_amount"),
		form.Get("mb_currency"),
		form.Get("status"))
	if !strings.EqualFold(signature, expected) {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	}
	return nil
}

// normalizeTransactionID validates the callback transaction id and returns
// the form it was signed with: canonical lowercase for GUIDs, raw for
// numeric legacy ids.
func normalizeTransactionID(raw string) (string, error) {
	if id, err := uuid.Parse(raw); err == nil {
		return id.String(), nil
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return raw, nil
	}
	return "", fmt.Errorf("invalid transaction_id format %q", raw)
}
