package utils

// Minor-unit exponents for currencies that deviate from two decimals.
var currencyExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
}

// CurrencyExponent returns the number of minor-unit digits for a currency
// code. Unknown codes default to two.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[currency]; ok {
		return exp
	}
	return 2
}
