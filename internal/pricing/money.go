package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Minor unit exponents for currencies that do not use two decimals.
var currencyExponents = map[string]int32{
	"jpy": 0,
	"krw": 0,
	"vnd": 0,
	"clp": 0,
	"isk": 0,
	"bhd": 3,
	"kwd": 3,
	"omr": 3,
	"jod": 3,
}

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"jpy": "¥",
}

// Exponent returns the number of minor unit digits of a currency.
func Exponent(currencyCode string) int32 {
	if exp, ok := currencyExponents[strings.ToLower(currencyCode)]; ok {
		return exp
	}
	return 2
}

// ToDecimal converts an amount in minor units into major units.
func ToDecimal(amount int64, currencyCode string) decimal.Decimal {
	return decimal.New(amount, -Exponent(currencyCode))
}

// FromDecimal converts major units back to minor units, rounding half away from zero.
func FromDecimal(d decimal.Decimal, currencyCode string) int64 {
	return d.Shift(Exponent(currencyCode)).Round(0).IntPart()
}

// FormatAmount renders minor units for display, e.g. 1999 usd -> "$19.99", 1500 sek -> "15.00 SEK".
func FormatAmount(amount int64, currencyCode string) string {
	code := strings.ToLower(currencyCode)
	value := ToDecimal(amount, code).StringFixed(Exponent(code))
	if symbol, ok := currencySymbols[code]; ok {
		if strings.HasPrefix(value, "-") {
			return "-" + symbol + strings.TrimPrefix(value, "-")
		}
		return symbol + value
	}
	if code == "" {
		return value
	}
	return value + " " + strings.ToUpper(code)
}
