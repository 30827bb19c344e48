package core

import "github.com/shopspring/decimal"

// CategoryTotal represents an amount aggregated by category.
type CategoryTotal struct {
	Category Category
	Color    string
	Total    Amount
}

// Summary holds the dashboard figures derived from a snapshot of expenses.
// It is recomputed on demand and never stored.
type Summary struct {
	Count          int
	Total          Amount
	Today          Amount
	ThisMonth      Amount
	LastMonth      Amount
	MonthOverMonth decimal.Decimal // percent
	PerCategory    []CategoryTotal
}

// Average returns Total/Count, zero for an empty snapshot.
func (s Summary) Average() Amount {
	if s.Count == 0 {
		return Amount{}
	}
	return Amount{Decimal: s.Total.Div(decimal.NewFromInt(int64(s.Count)))}
}
