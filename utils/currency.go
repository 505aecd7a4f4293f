package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCurrencyKES formats an amount as Kenyan Shillings.
// Example: 1250.5 -> "KSh 1,250.50"
func FormatCurrencyKES(amount float64) string {
	formatted := fmt.Sprintf("%.2f", amount)

	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	var result []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		result = append([]string{integerPart[start:i]}, result...)
	}

	return "KSh " + strings.Join(result, ",") + "." + decimalPart
}

// WholeUnits rounds an amount up to whole shillings, the unit the payment
// provider accepts.
func WholeUnits(amount float64) int {
	return int(math.Ceil(amount))
}
