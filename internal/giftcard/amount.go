package giftcard

import (
	"fmt"
	"strings"
)

// FormatAmount renders minor units as "25.00 EUR". It returns an empty
// string when either the amount or the currency is missing.
func FormatAmount(amount *int64, currency string) string {
	currency = strings.TrimSpace(currency)
	if amount == nil || currency == "" {
		return ""
	}
	a := *amount
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, a/100, a%100, strings.ToUpper(currency))
}
