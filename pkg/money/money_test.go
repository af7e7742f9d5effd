package money

import (
	"testing"
)

func TestNewFromString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		currency string
		locale   Locale
		want     int64
		wantErr  bool
	}{
		{name: "plain decimal", input: "42.50", currency: USD, locale: LocaleUS, want: 4250},
		{name: "us thousands", input: "1,234.56", currency: USD, locale: LocaleUS, want: 123456},
		{name: "eu decimal comma", input: "10,50", currency: EUR, locale: LocaleEU, want: 1050},
		{name: "eu thousands", input: "1.234,56", currency: EUR, locale: LocaleEU, want: 123456},
		{name: "currency symbol stripped", input: "$99.99", currency: USD, locale: LocaleUS, want: 9999},
		{name: "integer amount", input: "500", currency: USD, locale: LocaleUS, want: 50000},
		{name: "garbage", input: "not-a-number", currency: USD, locale: LocaleUS, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewFromString(tt.input, tt.currency, tt.locale)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewFromString(%q) expected error, got %v", tt.input, m)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFromString(%q) unexpected error: %v", tt.input, err)
			}
			if m.Amount() != tt.want {
				t.Errorf("NewFromString(%q) = %d minor units, want %d", tt.input, m.Amount(), tt.want)
			}
		})
	}
}

func TestLocaleForDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   Locale
	}{
		{"millenniumbcp.pt", LocaleEU},
		{"sparkasse.de", LocaleEU},
		{"chase.com", LocaleUS},
		{"hdfcbank.in", LocaleUS},
		{"bank.xyz", LocaleUS}, // fallback
		{"", LocaleUS},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			if got := LocaleForDomain(tt.domain, LocaleUS); got != tt.want {
				t.Errorf("LocaleForDomain(%q) = %q, want %q", tt.domain, got, tt.want)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	a := New(1000, USD)
	b := New(250, USD)

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if sum.Amount() != 1250 {
		t.Errorf("Add = %d, want 1250", sum.Amount())
	}

	if _, err := a.Add(New(100, EUR)); err == nil {
		t.Error("Add with mismatched currencies should error")
	}
}

func TestDecimal(t *testing.T) {
	m := New(4250, USD)
	if got := m.Decimal().StringFixed(2); got != "42.50" {
		t.Errorf("Decimal() = %s, want 42.50", got)
	}

	// JPY has no minor units
	y := New(500, JPY)
	if got := y.Decimal().StringFixed(0); got != "500" {
		t.Errorf("JPY Decimal() = %s, want 500", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m := New(4250, USD)
	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var back Money
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !back.Equals(m) {
		t.Errorf("round trip mismatch: got %s want %s", back.String(), m.String())
	}
}
