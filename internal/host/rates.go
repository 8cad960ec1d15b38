package host

import (
	"context"
	"fmt"
	"strings"
)

// RateConverter is a CurrencyConverter backed by a static rate table
// expressed against a base currency (rate = units of currency per one unit
// of base). Equal currencies convert as identity regardless of the table.
type RateConverter struct {
	Base  string
	Rates map[string]float64
}

func (c RateConverter) rate(currency string) (float64, bool) {
	currency = strings.ToUpper(currency)
	if currency == strings.ToUpper(c.Base) {
		return 1, true
	}
	rate, ok := c.Rates[currency]
	return rate, ok && rate > 0
}

func (c RateConverter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	fromRate, ok := c.rate(from)
	if !ok {
		return 0, fmt.Errorf("host: no exchange rate for %s", from)
	}
	toRate, ok := c.rate(to)
	if !ok {
		return 0, fmt.Errorf("host: no exchange rate for %s", to)
	}
	return amount / fromRate * toRate, nil
}
