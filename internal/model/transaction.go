// Package model defines the transaction records consumed by the analytics engine.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Transaction is a single bank transaction.
//
// Sign convention: Amount > 0 is an outflow (expense), Amount < 0 is an inflow
// (income). Every detector relies on this; ingestion is responsible for mapping
// whatever the upstream source uses onto it.
type Transaction struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"account_id"`
	MerchantName     string    `json:"merchant_name"`
	Name             string    `json:"name"`
	Amount           float64   `json:"amount"`
	Date             time.Time `json:"date"`
	CategoryPrimary  string    `json:"category_primary"`
	CategoryDetailed string    `json:"category_detailed"`
}

// IsExpense reports whether the transaction is an outflow.
func (t *Transaction) IsExpense() bool {
	return t.Amount > 0
}

// IsIncome reports whether the transaction is an inflow.
func (t *Transaction) IsIncome() bool {
	return t.Amount < 0
}

// Source returns the best available payer/payee label for the transaction.
func (t *Transaction) Source() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

// NormalizeCategory maps a raw upstream category string onto a canonical
// lower_snake tag. Categories arrive as an open string enum from the bank-link
// provider; normalizing once at ingestion keeps the detectors from branching on
// raw spellings.
func NormalizeCategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.Join(strings.Fields(s), "_")
	return s
}

var titleCaser = cases.Title(language.English)

// FormatCategoryName converts a canonical category tag into a display name,
// e.g. "food_and_drink" -> "Food And Drink".
func FormatCategoryName(category string) string {
	if category == "" {
		return ""
	}
	spaced := strings.ReplaceAll(category, "_", " ")
	return titleCaser.String(strings.ToLower(spaced))
}
