package skrill

import (
	"net/url"
	"strconv"
)

// LineItem is the slice of an order or cart line the detail slots need.
type LineItem struct {
	Name             string
	ShortDescription string
	Quantity         int
}

// DetailSlot is one of the five description/text pairs shown on the hosted
// payment page.
type DetailSlot struct {
	Description string
	Text        string
}

// Customer carries the billing details submitted with a checkout session.
type Customer struct {
	Email       string
	FirstName   string
	LastName    string
	DateOfBirth string // ddMMyyyy
	Address     string
	Address2    string
	Phone       string
	PostalCode  string
	City        string
	State       string
	CountryCode string // three-letter ISO
}

// AmountBreakdown itemizes the order total on the payment page.
type AmountBreakdown struct {
	Subtotal float64
	Shipping float64
	Tax      float64
}

// SessionParams holds everything needed to build a quick-checkout session
// request. Breakdown is nil for the inline (pre-order) flow, which submits
// the running cart total only.
type SessionParams struct {
	MerchantEmail   string
	StoreName       string
	TransactionID   string
	ReturnURL       string
	ReturnURLText   string
	CancelURL       string
	StatusURL       string
	Language        string
	PlatformVersion string
	Customer        Customer
	CustomerID      string // inline flow correlation id, echoed via merchant fields
	Inline          bool
	Currency        string
	Total           float64
	Breakdown       *AmountBreakdown
	Items           []LineItem
}

// DetailSlots derives the five detail pairs from the order lines. The
// precedence rule degrades per slot: slot 1 is always the first item's name;
// slot 2 falls back to the first item's description when there is no second
// item; slot 3 falls back to the first item's quantity only when there is no
// second item; slots 4 and 5 are names or empty.
func DetailSlots(items []LineItem) [5]DetailSlot {
	var slots [5]DetailSlot

	item := func(i int) *LineItem {
		if i < len(items) {
			return &items[i]
		}
		return nil
	}

	slots[0].Description = "Product name:"
	if it := item(0); it != nil {
		slots[0].Text = it.Name
	}

	if it := item(1); it != nil {
		slots[1] = DetailSlot{Description: "Product name:", Text: it.Name}
	} else {
		slots[1].Description = "Product description:"
		if first := item(0); first != nil {
			slots[1].Text = first.ShortDescription
		}
	}

	switch {
	case item(2) != nil:
		slots[2] = DetailSlot{Description: "Product name:", Text: item(2).Name}
	case item(1) != nil:
		// second item exists, third does not: slot stays empty
	default:
		slots[2].Description = "Quantity:"
		if first := item(0); first != nil {
			slots[2].Text = strconv.Itoa(first.Quantity)
		}
	}

	for i := 3; i < 5; i++ {
		if it := item(i); it != nil {
			slots[i] = DetailSlot{Description: "Product name:", Text: it.Name}
		}
	}
	return slots
}

// BuildSessionRequestURL assembles the prepare-only quick-checkout request
// URL. Every string field is truncated to the provider's documented maximum
// before inclusion.
func (e Endpoints) BuildSessionRequestURL(p SessionParams) string {
	q := url.Values{}

	// merchant details
	q.Set("pay_to_email", Truncate(p.MerchantEmail, 50))
	q.Set("recipient_description", Truncate(p.StoreName, 30))
	q.Set("transaction_id", p.TransactionID)
	q.Set("status_url", Truncate(p.StatusURL, 400))
	q.Set("language", Truncate(p.Language, 2))
	q.Set("prepare_only", "1")
	q.Set("dynamic_descriptor", Truncate(p.StoreName, 25))
	q.Set("platform", Truncate(ReferralID, 240))
	q.Set("platform_version", Truncate(p.PlatformVersion, 240))
	q.Set("return_url", Truncate(p.ReturnURL, 240))

	if p.Inline {
		q.Set("merchant_fields", Truncate("platform,platform_version,customer_id", 240))
		// the target URL opens in the same frame as the embedded payment form
		q.Set("return_url_target", "3")
		q.Set("customer_id", p.CustomerID)
	} else {
		q.Set("merchant_fields", Truncate("platform,platform_version", 240))
		q.Set("return_url_text", Truncate(p.ReturnURLText, 35))
		q.Set("cancel_url", Truncate(p.CancelURL, 240))
	}

	// customer details
	q.Set("pay_from_email", Truncate(p.Customer.Email, 100))
	q.Set("firstname", Truncate(p.Customer.FirstName, 20))
	q.Set("lastname", Truncate(p.Customer.LastName, 50))
	q.Set("date_of_birth", Truncate(p.Customer.DateOfBirth, 8))
	q.Set("address", Truncate(p.Customer.Address, 100))
	q.Set("address2", Truncate(p.Customer.Address2, 100))
	q.Set("phone_number", Truncate(p.Customer.Phone, 20))
	q.Set("postal_code", Truncate(p.Customer.PostalCode, 9))
	q.Set("city", Truncate(p.Customer.City, 50))
	q.Set("state", Truncate(p.Customer.State, 50))
	q.Set("country", Truncate(p.Customer.CountryCode, 3))

	// payment details
	q.Set("amount", Truncate(FormatAmount(p.Total), 19))
	q.Set("currency", Truncate(p.Currency, 3))
	if p.Breakdown != nil {
		q.Set("amount2_description", Truncate("Item total:", 240))
		q.Set("amount2", Truncate(FormatAmount(p.Breakdown.Subtotal), 19))
		q.Set("amount3_description", Truncate("Shipping total:", 240))
		q.Set("amount3", Truncate(FormatAmount(p.Breakdown.Shipping), 19))
		q.Set("amount4_description", Truncate("Tax total:", 240))
		q.Set("amount4", Truncate(FormatAmount(p.Breakdown.Tax), 19))
	}

	slots := DetailSlots(p.Items)
	for i, slot := range slots {
		n := strconv.Itoa(i + 1)
		q.Set("detail"+n+"_description", Truncate(slot.Description, 240))
		q.Set("detail"+n+"_text", Truncate(slot.Text, 240))
	}

	return e.Checkout + "?" + q.Encode()
}

// RedirectURL builds the final browser redirect embedding the session token.
func (e Endpoints) RedirectURL(sessionID string) string {
	q := url.Values{}
	q.Set("sid", Truncate(sessionID, 32))
	return e.Checkout + "?" + q.Encode()
}
