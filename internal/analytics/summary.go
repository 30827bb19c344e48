// Package analytics derives dashboard figures from an expense snapshot.
// Everything here is a pure function of its arguments.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Summarize computes totals for the snapshot relative to now's calendar date
// in now's location.
func Summarize(expenses []core.Expense, now time.Time) core.Summary {
	today := core.DateOf(now)
	thisYear, thisMonth := now.Year(), now.Month()
	lastYear, lastMonth := previousMonth(thisYear, thisMonth)

	byCategory := make(map[core.Category]core.Amount)
	var s core.Summary
	for _, e := range expenses {
		amt := e.Amount
		s.Count++
		s.Total = s.Total.Add(amt)
		if e.Date.Equal(today) {
			s.Today = s.Today.Add(amt)
		}
		if e.Date.InMonth(thisYear, thisMonth) {
			s.ThisMonth = s.ThisMonth.Add(amt)
		}
		if e.Date.InMonth(lastYear, lastMonth) {
			s.LastMonth = s.LastMonth.Add(amt)
		}
		byCategory[e.Category] = byCategory[e.Category].Add(amt)
	}

	s.MonthOverMonth = monthOverMonth(s.ThisMonth, s.LastMonth)
	for _, c := range core.Categories() {
		total := byCategory[c]
		if total.IsZero() {
			continue
		}
		s.PerCategory = append(s.PerCategory, core.CategoryTotal{Category: c, Color: c.Color(), Total: total})
	}
	return s
}

// monthOverMonth is +100 whenever last month is zero, including 0 -> 0.
func monthOverMonth(this, last core.Amount) decimal.Decimal {
	if last.IsZero() {
		return hundred
	}
	return this.Sub(last.Decimal).Div(last.Decimal).Mul(hundred)
}

func previousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "flat"
	}
}

// TrendOf classifies the month-over-month change for the dashboard arrow.
func TrendOf(s core.Summary) Trend {
	switch s.MonthOverMonth.Sign() {
	case 1:
		return TrendUp
	case -1:
		return TrendDown
	default:
		return TrendFlat
	}
}

// Share is one slice of the category breakdown.
type Share struct {
	core.CategoryTotal
	Percent decimal.Decimal
}

// CategoryShare returns each category's percentage of the total, in the same
// order as s.PerCategory.
func CategoryShare(s core.Summary) []Share {
	out := make([]Share, 0, len(s.PerCategory))
	for _, ct := range s.PerCategory {
		pct := decimal.Zero
		if !s.Total.IsZero() {
			pct = ct.Total.Div(s.Total.Decimal).Mul(hundred)
		}
		out = append(out, Share{CategoryTotal: ct, Percent: pct})
	}
	return out
}
