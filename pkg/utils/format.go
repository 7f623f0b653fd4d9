// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
)

// FormatUSD formats a dollar amount with a sign and thousands separators.
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	intPart := str[:len(str)-3]
	decPart := str[len(str)-2:]

	result := "$" + groupThousands(intPart) + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 3 {
		result = s[len(s)-3:] + "," + result
		s = s[:len(s)-3]
	}
	return s + "," + result
}

// FormatPrice renders a price with enough decimals for the tick size.
// A tick of 0.25 prints two decimals, 0.005 prints three, and so on.
func FormatPrice(price, tickSize float64) string {
	return fmt.Sprintf("%.*f", PriceDecimals(tickSize), price)
}

// PriceDecimals returns the number of decimal places needed to render
// prices on the given tick grid without rounding artifacts.
func PriceDecimals(tickSize float64) int {
	if tickSize <= 0 {
		return 2
	}
	for d := 0; d <= 8; d++ {
		scaled := tickSize * math.Pow(10, float64(d))
		if math.Abs(scaled-math.Round(scaled)) < 1e-9 {
			return d
		}
	}
	return 8
}

// FormatSignedTicks renders a tick offset with an explicit sign.
func FormatSignedTicks(ticks float64) string {
	if ticks > 0 {
		return fmt.Sprintf("+%.1ft", ticks)
	}
	return fmt.Sprintf("%.1ft", ticks)
}
