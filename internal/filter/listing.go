package filter

import (
	"sync"

	"expensetracker/internal/core"
)

const DefaultPageSize = 10

// Listing is the listing view state. Every change to the criteria or page
// size resets the page index inside the same critical section, so a reader
// never observes new criteria paired with an old page.
type Listing struct {
	mu       sync.Mutex
	criteria Criteria
	page     int
	pageSize int
}

func NewListing(pageSize int) *Listing {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Listing{pageSize: pageSize}
}

// Page is one rendered page of the listing.
type Page struct {
	Items     []core.Expense
	Total     int
	PageIndex int
	PageCount int
	PageSize  int
	Criteria  Criteria
}

func (l *Listing) update(fn func(c *Criteria)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.criteria)
	l.page = 0
}

func (l *Listing) SetCriteria(c Criteria) { l.update(func(cur *Criteria) { *cur = c }) }

func (l *Listing) SetSearch(q string) { l.update(func(c *Criteria) { c.Search = q }) }

func (l *Listing) SetCategory(cat core.Category) { l.update(func(c *Criteria) { c.Category = cat }) }

func (l *Listing) SetDateRange(start, end core.Date) {
	l.update(func(c *Criteria) { c.Start, c.End = start, end })
}

func (l *Listing) ClearFilters() { l.update(func(c *Criteria) { *c = Criteria{} }) }

func (l *Listing) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pageSize = n
	l.page = 0
}

// SetPage moves to page i without touching the criteria.
func (l *Listing) SetPage(i int) {
	if i < 0 {
		i = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.page = i
}

func (l *Listing) State() (Criteria, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.criteria, l.page, l.pageSize
}

// View filters the snapshot and slices out the current page.
func (l *Listing) View(snapshot []core.Expense) Page {
	c, page, size := l.State()
	matched := Apply(snapshot, c)
	return Page{
		Items:     Paginate(matched, page, size),
		Total:     len(matched),
		PageIndex: page,
		PageCount: PageCount(len(matched), size),
		PageSize:  size,
		Criteria:  c,
	}
}
