package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// ExpenseCategory groups items for reporting
type ExpenseCategory string

const (
	CategoryTravel        ExpenseCategory = "Travel"
	CategoryAccommodation ExpenseCategory = "Accommodation"
	CategoryMeals         ExpenseCategory = "Meals"
	CategoryRegistration  ExpenseCategory = "Registration"
	CategoryEquipment     ExpenseCategory = "Equipment"
	CategorySupplies      ExpenseCategory = "Supplies"
	CategoryOther         ExpenseCategory = "Other"
)

var validCategories = map[ExpenseCategory]bool{
	CategoryTravel:        true,
	CategoryAccommodation: true,
	CategoryMeals:         true,
	CategoryRegistration:  true,
	CategoryEquipment:     true,
	CategorySupplies:      true,
	CategoryOther:         true,
}

// PaymentMethod is how the submitter paid for an item
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "Cash"
	PaymentCard         PaymentMethod = "Card"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
	PaymentUPI          PaymentMethod = "UPI"
	PaymentOther        PaymentMethod = "Other"
)

var validPaymentMethods = map[PaymentMethod]bool{
	PaymentCash:         true,
	PaymentCard:         true,
	PaymentBankTransfer: true,
	PaymentUPI:          true,
	PaymentOther:        true,
}

// ExpenseItem is one line of an expense report
type ExpenseItem struct {
	ID            int64           `json:"id"`
	Category      ExpenseCategory `json:"category"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Date          time.Time       `json:"date"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	ReceiptRef    string          `json:"receiptRef,omitempty"`
}

// Validate checks the item fields a submitter has to supply
func (i ExpenseItem) Validate() error {
	if !validCategories[i.Category] {
		return fmt.Errorf("%w: unknown category %q", workflow.ErrValidation, i.Category)
	}
	if !i.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", workflow.ErrValidation)
	}
	if strings.TrimSpace(i.Currency) == "" {
		return fmt.Errorf("%w: currency is required", workflow.ErrValidation)
	}
	if i.Date.IsZero() {
		return fmt.Errorf("%w: expense date is required", workflow.ErrValidation)
	}
	if !validPaymentMethods[i.PaymentMethod] {
		return fmt.Errorf("%w: unknown payment method %q", workflow.ErrValidation, i.PaymentMethod)
	}
	return nil
}
