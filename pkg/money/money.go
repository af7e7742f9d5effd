// Package money provides currency-safe financial arithmetic using integer
// minor units and the Fowler Money pattern. Amount parsing understands both
// decimal-point and decimal-comma locales, which matters for notification
// emails where the separator convention follows the sender's country.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	BRL = "BRL"
	INR = "INR"
	JPY = "JPY" // no decimal places
)

// Locale identifies the number-format convention used when parsing amounts.
type Locale string

const (
	// LocaleUS uses "," as thousands separator and "." as decimal mark.
	LocaleUS Locale = "us"
	// LocaleEU uses "." (or space) as thousands separator and "," as decimal mark.
	LocaleEU Locale = "eu"
)

// LocaleForDomain guesses the number-format locale from a sender domain TLD.
// Unknown TLDs return the provided fallback.
func LocaleForDomain(domain string, fallback Locale) Locale {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 || idx == len(domain)-1 {
		return fallback
	}
	switch strings.ToLower(domain[idx+1:]) {
	case "pt", "de", "fr", "es", "it", "nl", "be", "at", "br":
		return LocaleEU
	case "com", "us", "uk", "ca", "au", "in", "ie":
		return LocaleUS
	default:
		return fallback
	}
}

// Money represents a monetary value with currency.
// It wraps go-money for safe arithmetic and shopspring/decimal for precision.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units and a currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, currencyCode)}
}

// NewFromDecimal creates Money from a decimal value in major units.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(USD)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, currencyCode)
}

// NewFromString parses a textual amount like "42.50", "1,234.56" or
// "1.234,56" according to the locale and returns Money in the given currency.
func NewFromString(amount string, currencyCode string, locale Locale) (*Money, error) {
	cleaned := strings.TrimSpace(amount)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	for _, sym := range []string{"$", "€", "£", "R$", "¥", "₹"} {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}

	if locale == LocaleEU {
		// 1.234,56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		// 1,234.56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewFromDecimal(d, currencyCode), nil
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the absolute value
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return nil
	}
	return &Money{m: m.m.Absolute()}
}

// Add returns the sum of two Money values. Mismatched currencies error.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return nil, fmt.Errorf("cannot add nil money values")
	}
	sum, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: sum}, nil
}

// Equals reports whether two values have the same amount and currency.
func (m *Money) Equals(other *Money) bool {
	return m.Amount() == other.Amount() && m.Currency() == other.Currency()
}

// Decimal returns the amount as a decimal in major units.
func (m *Money) Decimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	fraction := int32(m.m.Currency().Fraction)
	return decimal.New(m.Amount(), -fraction)
}

// Display formats the value with its currency symbol (e.g. "$42.50").
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0"
	}
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(int32(m.m.Currency().Fraction)), m.Currency())
}

type moneyJSON struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// MarshalJSON implements json.Marshaler.
func (m *Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{AmountMinor: m.Amount(), Currency: m.Currency()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var mj moneyJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	if mj.Currency == "" {
		mj.Currency = USD
	}
	m.m = money.New(mj.AmountMinor, mj.Currency)
	return nil
}
