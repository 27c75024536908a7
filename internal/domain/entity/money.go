package entity

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// RateTable converts item amounts into the institution's currency. Rates are units of Base
// per one unit of the keyed currency.
type RateTable struct {
	Base  string
	Rates map[string]decimal.Decimal
}

// Normalize converts an amount in currency into the base currency
func (t RateTable) Normalize(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == strings.ToUpper(t.Base) {
		return amount, nil
	}
	rate, ok := t.Rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %q", workflow.ErrValidation, currency)
	}
	return amount.Mul(rate), nil
}

// Supports reports whether items in currency can be normalised
func (t RateTable) Supports(currency string) bool {
	_, err := t.Normalize(decimal.Zero, currency)
	return err == nil
}
