// Package filter implements the listing view's search, filter and
// pagination over an expense snapshot.
package filter

import (
	"strings"

	"expensetracker/internal/core"
)

// Criteria is a set of optional constraints combined with AND. Zero fields
// impose nothing.
type Criteria struct {
	Search   string
	Category core.Category
	Start    core.Date
	End      core.Date
}

func (c Criteria) IsZero() bool {
	return strings.TrimSpace(c.Search) == "" && c.Category == "" && c.Start.IsZero() && c.End.IsZero()
}

func (c Criteria) Match(e core.Expense) bool {
	if q := strings.TrimSpace(c.Search); q != "" {
		if !strings.Contains(strings.ToLower(e.Description), strings.ToLower(q)) {
			return false
		}
	}
	if c.Category != "" && e.Category != c.Category {
		return false
	}
	if !c.Start.IsZero() && e.Date.Before(c.Start) {
		return false
	}
	if !c.End.IsZero() && e.Date.After(c.End) {
		return false
	}
	return true
}

// Apply returns the expenses matching c in their original relative order.
func Apply(expenses []core.Expense, c Criteria) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if c.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Paginate returns page pageIndex (zero-based) of at most pageSize items.
// Out-of-range pages and non-positive sizes yield an empty slice.
func Paginate[T any](items []T, pageIndex, pageSize int) []T {
	if pageIndex < 0 || pageSize <= 0 {
		return []T{}
	}
	start := pageIndex * pageSize
	if start >= len(items) || start/pageSize != pageIndex {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end:end]
}

// PageCount is ceil(total/pageSize).
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
