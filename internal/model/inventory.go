package model

import (
	"strings"
	"time"
)

// Category identifies a purchasable box type (e.g. "1mil").
type Category string

// ParseCategory normalizes user input the way the shop commands accept it.
func ParseCategory(s string) Category {
	return Category(strings.ToLower(strings.TrimSpace(s)))
}

// CategorySet is the fixed, ordered set of categories a shop sells.
type CategorySet []Category

// NewCategorySet builds a set from configured names, dropping blanks and duplicates.
func NewCategorySet(names []string) CategorySet {
	set := make(CategorySet, 0, len(names))
	seen := make(map[Category]bool, len(names))
	for _, n := range names {
		c := ParseCategory(n)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		set = append(set, c)
	}
	return set
}

// Contains reports whether c is one of the configured categories.
func (s CategorySet) Contains(c Category) bool {
	for _, known := range s {
		if known == c {
			return true
		}
	}
	return false
}

// Strings returns the category names in configured order.
func (s CategorySet) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = string(c)
	}
	return out
}

// StockRecord is the on-hand quantity of one category.
type StockRecord struct {
	Category Category `json:"category"`
	Quantity int      `json:"quantity"`
}

// PurchaseEvent is one accepted purchase. The log of these events is the
// audit trail and the only input to quota accounting.
type PurchaseEvent struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Category  Category  `json:"category"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// LedgerStats summarizes the ledger for the admin stats endpoint.
type LedgerStats struct {
	Backend        string        `json:"backend"`
	Stock          []StockRecord `json:"stock"`
	PurchaseEvents int64         `json:"purchase_events"`
	LastPurchase   *time.Time    `json:"last_purchase,omitempty"`
}
