// Package currency maps currency codes to display symbols and formats
// amounts for display.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes one supported currency.
type Currency struct {
	Code   string
	Name   string
	Symbol string
	// Decimals is the number of minor-unit digits shown.
	Decimals int32
}

var supported = []Currency{
	{Code: "USD", Name: "US Dollar", Symbol: "$", Decimals: 2},
	{Code: "EUR", Name: "Euro", Symbol: "€", Decimals: 2},
	{Code: "GBP", Name: "British Pound", Symbol: "£", Decimals: 2},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Decimals: 0},
	{Code: "IDR", Name: "Indonesian Rupiah", Symbol: "Rp", Decimals: 0},
	{Code: "INR", Name: "Indian Rupee", Symbol: "₹", Decimals: 2},
	{Code: "SGD", Name: "Singapore Dollar", Symbol: "S$", Decimals: 2},
	{Code: "MYR", Name: "Malaysian Ringgit", Symbol: "RM", Decimals: 2},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$", Decimals: 2},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$", Decimals: 2},
	{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥", Decimals: 2},
	{Code: "KRW", Name: "South Korean Won", Symbol: "₩", Decimals: 0},
	{Code: "THB", Name: "Thai Baht", Symbol: "฿", Decimals: 2},
	{Code: "PHP", Name: "Philippine Peso", Symbol: "₱", Decimals: 2},
	{Code: "VND", Name: "Vietnamese Dong", Symbol: "₫", Decimals: 0},
}

var byCode = func() map[string]Currency {
	m := make(map[string]Currency, len(supported))
	for _, c := range supported {
		m[c.Code] = c
	}
	return m
}()

// List returns the supported currencies.
func List() []Currency {
	out := make([]Currency, len(supported))
	copy(out, supported)
	return out
}

// Lookup returns the currency for code, case-insensitively.
func Lookup(code string) (Currency, bool) {
	c, ok := byCode[strings.ToUpper(code)]
	return c, ok
}

// Symbol returns the display symbol for code, or the code itself when it is
// not supported.
func Symbol(code string) string {
	if c, ok := Lookup(code); ok {
		return c.Symbol
	}
	return code
}

// Format renders amount with the currency's symbol, minor-unit precision and
// thousands separators, e.g. "$1,234.50" or "-Rp15,000".
func Format(amount decimal.Decimal, code string) string {
	c, ok := Lookup(code)
	if !ok {
		c = Currency{Code: code, Symbol: code + " ", Decimals: 2}
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(c.Decimals)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	b.WriteString(c.Symbol)
	b.WriteString(group(whole))
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
