// Package billing holds the pure money and payment-rule primitives shared by
// the plan and sale services. Nothing in here touches the database.
package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round normalizes a monetary amount to 2 decimal places, half-up.
// Every amount that crosses a service boundary goes through here so balance
// arithmetic stays exact to the cent.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// FromFloat converts a float into a rounded monetary amount.
func FromFloat(v float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(v))
}

// ParseAmount parses a user-supplied amount string. Empty or unparseable
// input yields 0.00 rather than an error; form fields routinely arrive blank.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return Round(d)
}
