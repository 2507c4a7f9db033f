package models

// Summary holds the aggregates derived from a user's transactions.
// Income sums amounts above zero, Expense sums amounts below zero keeping
// their sign, and Balance is always Income + Expense. Never persisted.
type Summary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}
