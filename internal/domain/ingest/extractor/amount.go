package extractor

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/mailspend/pkg/money"
)

// Amount matching runs two independent matchers: one anchored on a
// currency symbol or code next to the number, one anchored on a spending
// verb preceding it. Numbers allow thousand separators in either
// convention; the locale hint decides which reading wins.
var (
	numberPattern = `\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{2})?|\d+(?:[.,]\d{1,2})?`

	symbolAmountPattern = regexp.MustCompile(
		`(?i)(\$|€|£|R\$|USD|EUR|GBP|BRL)\s*(` + numberPattern + `)|(` + numberPattern + `)\s*(\$|€|£|USD|EUR|GBP|BRL)`)

	verbAmountPattern = regexp.MustCompile(
		`(?i)\b(?:spent|paid|charged|debited|credited|received|transferred|refund(?:ed)?(?:\s+of)?|amount(?:\s+of)?:?|payment\s+of|purchase\s+of|total(?:\s+of)?:?)\s+(\$|€|£|USD|EUR|GBP)?\s*(` + numberPattern + `)`)

	currencyTokenPattern = regexp.MustCompile(`(?i)(\$|€|£|R\$|\bUSD\b|\bEUR\b|\bGBP\b|\bBRL\b)`)
)

// extractAmount returns the agreed amount and its confidence. Confidence
// is the fraction of matchers that produced the chosen value.
func (e *Extractor) extractAmount(text string, locale money.Locale) (*money.Money, float64) {
	currency := e.detectCurrency(text)

	votes := make([]*money.Money, 0, 2)
	if m := symbolAmount(text, currency, locale); m != nil {
		votes = append(votes, m)
	}
	if m := verbAmount(text, currency, locale); m != nil {
		votes = append(votes, m)
	}
	if len(votes) == 0 {
		return nil, 0
	}

	chosen := votes[0]
	agree := 0
	for _, v := range votes {
		if v.Equals(chosen) {
			agree++
		}
	}
	return chosen, float64(agree) / 2
}

func symbolAmount(text, fallbackCurrency string, locale money.Locale) *money.Money {
	match := symbolAmountPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	var symbol, raw string
	if match[2] != "" {
		symbol, raw = match[1], match[2]
	} else {
		symbol, raw = match[4], match[3]
	}

	currency := normalizeCurrency(symbol)
	if currency == "" {
		currency = fallbackCurrency
	}
	m, err := money.NewFromString(raw, currency, locale)
	if err != nil {
		return nil
	}
	return m
}

func verbAmount(text, fallbackCurrency string, locale money.Locale) *money.Money {
	match := verbAmountPattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	currency := normalizeCurrency(match[1])
	if currency == "" {
		currency = fallbackCurrency
	}
	m, err := money.NewFromString(match[2], currency, locale)
	if err != nil {
		return nil
	}
	return m
}

// detectCurrency scans the whole segment for a currency token so a
// matcher whose own match carries no symbol still agrees on currency.
func (e *Extractor) detectCurrency(text string) string {
	match := currencyTokenPattern.FindString(text)
	if c := normalizeCurrency(match); c != "" {
		return c
	}
	return e.cfg.FallbackCurrency
}

func normalizeCurrency(symbol string) string {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "$", "USD":
		return money.USD
	case "€", "EUR":
		return money.EUR
	case "£", "GBP":
		return money.GBP
	case "R$", "BRL":
		return money.BRL
	default:
		return ""
	}
}
