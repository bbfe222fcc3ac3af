package utils

import (
	"fmt"

	"github.com/username/yieldmap/backend/src/models"
)

// Display formatting for possibly-absent listing fields. Absent values
// render as "N/A" rather than NaN leaking into the page.

func FormatMoney(v float64) string {
	if models.IsAbsent(v) {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", v)
}

// FormatPercent renders with the percent sign as prefix ("%10.00"), which
// is how the map popups have always displayed yield.
func FormatPercent(v float64) string {
	if models.IsAbsent(v) {
		return "N/A"
	}
	return fmt.Sprintf("%%%.2f", v)
}

func FormatCount(v float64) string {
	if models.IsAbsent(v) {
		return "N/A"
	}
	return fmt.Sprintf("%d", int(v))
}
