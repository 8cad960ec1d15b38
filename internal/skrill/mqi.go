package skrill

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var currencyCodePattern = regexp.MustCompile(`mb_currency=(\w*)`)

// BuildHistoryURL assembles the MQI request used only to probe credential
// validity: a one-day history query.
func (e Endpoints) BuildHistoryURL(merchantEmail, passwordMD5 string, now time.Time) string {
	q := url.Values{}
	q.Set("email", merchantEmail)
	q.Set("password", passwordMD5)
	q.Set("action", "history")
	q.Set("start_date", now.UTC().AddDate(0, 0, -1).Format("02-01-2006"))
	return e.MQI + "?" + q.Encode()
}

// BuildTransactionStatusURL assembles the MQI status query for a provider
// transaction id.
func (e Endpoints) BuildTransactionStatusURL(merchantEmail, passwordMD5, transactionID string) string {
	q := url.Values{}
	q.Set("email", merchantEmail)
	q.Set("password", passwordMD5)
	q.Set("action", "status_trn")
	q.Set("mb_trn_id", transactionID)
	return e.MQI + "?" + q.Encode()
}

// ParseMQIError inspects a raw MQI response: a leading '4' digit carries the
// 4xx status the provider reports for bad requests. Failures caused by an
// unregistered server IP get the registration hint appended.
func ParseMQIError(response string) error {
	if !strings.HasPrefix(response, "4") {
		return nil
	}
	if strings.Contains(response, "remote ip") {
		response = response + "\nThe request came from an IP address not registered in the " +
			"merchant account. Log in to the provider account, open Developer Settings and " +
			"add the server IP to the MQI and API address list."
	}
	return fmt.Errorf("%w: %s", ErrRemoteProtocol, response)
}

// ParseTransactionCurrency extracts the mb_currency code from a status_trn
// response.
func ParseTransactionCurrency(response string) (string, error) {
	match := currencyCodePattern.FindStringSubmatch(response)
	if len(match) < 2 || match[1] == "" {
		return "", fmt.Errorf("%w: cannot get the currency code of the transaction", ErrRemoteProtocol)
	}
	return match[1], nil
}
