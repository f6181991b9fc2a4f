package enums

import (
	"slices"
	"strings"
)

// Currency is an ISO 4217 code accepted when buying credits.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencySAR Currency = "SAR"
	CurrencyAED Currency = "AED"
)

var validCurrencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencySAR, CurrencyAED}

func AllCurrencies() []Currency { return slices.Clone(validCurrencies) }

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return slices.Contains(validCurrencies, c) }

// ParseCurrency accepts codes in any case and surrounding whitespace.
func ParseCurrency(value string) (Currency, error) {
	return parseEnum(validCurrencies, strings.ToUpper(strings.TrimSpace(value)), "currency")
}
