// Package render draws the client's views for a terminal with lipgloss.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"expensetracker/internal/analytics"
	"expensetracker/internal/core"
	"expensetracker/internal/filter"
)

type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Up      lipgloss.Style
	Down    lipgloss.Style
	Card    lipgloss.Style
	Header  lipgloss.Style
	Border  lipgloss.Border
	Colored bool
}

func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("#D1D5DB")).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
		Up:      lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")),
		Down:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00")),
		Card:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2),
		Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Border:  lipgloss.RoundedBorder(),
		Colored: true,
	}
}

// PlainStyles renders without colour or emphasis, e.g. for NO_COLOR or pipes.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:  plain,
		Label:  plain,
		Value:  plain,
		Muted:  plain,
		Error:  plain,
		Up:     plain,
		Down:   plain,
		Card:   plain,
		Header: plain.Padding(0, 1),
		Border: lipgloss.NormalBorder(),
	}
}

type Renderer struct {
	out    io.Writer
	symbol string
	styles Styles
}

type Option func(*Renderer)

func WithStyles(s Styles) Option {
	return func(r *Renderer) { r.styles = s }
}

// New writes to out and prints amounts behind symbol.
func New(out io.Writer, symbol string, opts ...Option) *Renderer {
	r := &Renderer{out: out, symbol: symbol, styles: DefaultStyles()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) println(s string) {
	fmt.Fprintln(r.out, s)
}

// Chip renders a category with its colour swatch.
func (r *Renderer) Chip(c core.Category) string {
	if !r.styles.Colored {
		return c.String()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color())).Render("● " + c.String())
}

func (r *Renderer) money(a core.Amount) string {
	return a.Format(r.symbol)
}

// Session prints who is signed in, or the last failure for an anonymous session.
func (r *Renderer) Session(s core.Session) {
	if s.IsAuthenticated() {
		r.println(r.styles.Label.Render("Signed in as ") +
			r.styles.Value.Render(s.User.Name) +
			r.styles.Muted.Render(fmt.Sprintf(" (@%s, id %s)", s.User.Username, s.User.ID)))
		return
	}
	if s.LastError != "" {
		r.println(r.styles.Error.Render(s.LastError))
	}
	r.println(r.styles.Muted.Render("Not signed in."))
}

// Expense prints a single expense, e.g. after it was added.
func (r *Renderer) Expense(e core.Expense) {
	r.println(fmt.Sprintf("%s  %s  %s  %s  %s",
		r.styles.Muted.Render(e.ID.String()),
		e.Date.String(),
		r.Chip(e.Category),
		e.Description,
		r.styles.Value.Render(r.money(e.Amount))))
}

// Page prints the listing table with its pagination footer.
func (r *Renderer) Page(p filter.Page) {
	if p.Total == 0 {
		if p.Criteria.IsZero() {
			r.println(r.styles.Muted.Render("No expenses yet."))
		} else {
			r.println(r.styles.Muted.Render("No expenses match " + describeCriteria(p.Criteria) + "."))
		}
		return
	}

	t := table.New().
		Border(r.styles.Border).
		Headers("ID", "DATE", "CATEGORY", "DESCRIPTION", "AMOUNT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.styles.Header
			}
			if col == 4 {
				return lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, e := range p.Items {
		t.Row(e.ID.String(), e.Date.String(), r.Chip(e.Category), e.Description, r.money(e.Amount))
	}
	r.println(t.String())

	footer := fmt.Sprintf("Page %d of %d · %d %s", p.PageIndex+1, max(p.PageCount, 1), p.Total, plural(p.Total, "expense", "expenses"))
	if !p.Criteria.IsZero() {
		footer += " · " + describeCriteria(p.Criteria)
	}
	r.println(r.styles.Muted.Render(footer))
}

func describeCriteria(c filter.Criteria) string {
	var parts []string
	if q := strings.TrimSpace(c.Search); q != "" {
		parts = append(parts, fmt.Sprintf("search %q", q))
	}
	if c.Category != "" {
		parts = append(parts, "category "+c.Category.String())
	}
	if !c.Start.IsZero() {
		parts = append(parts, "from "+c.Start.String())
	}
	if !c.End.IsZero() {
		parts = append(parts, "to "+c.End.String())
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Summary prints the dashboard cards and the category breakdown.
func (r *Renderer) Summary(s core.Summary) {
	card := func(label, value string) string {
		return r.styles.Card.Render(r.styles.Label.Render(label) + "\n" + r.styles.Value.Render(value))
	}

	trend := analytics.TrendOf(s)
	change := s.MonthOverMonth.StringFixed(1) + "%"
	switch trend {
	case analytics.TrendUp:
		change = r.styles.Up.Render("▲ " + change)
	case analytics.TrendDown:
		change = r.styles.Down.Render("▼ " + change)
	default:
		change = r.styles.Muted.Render("▬ " + change)
	}

	r.println(r.styles.Title.Render("Dashboard"))
	r.println(lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total spent", r.money(s.Total)),
		" ",
		card("Today", r.money(s.Today)),
		" ",
		card("This month", r.money(s.ThisMonth)),
		" ",
		card("Average", r.money(s.Average())),
	))
	r.println(r.styles.Label.Render("Month over month: ") + change +
		r.styles.Muted.Render(fmt.Sprintf(" (last month %s)", r.money(s.LastMonth))))
	r.println(r.styles.Label.Render(fmt.Sprintf("%d %s", s.Count, plural(s.Count, "expense", "expenses"))))

	shares := analytics.CategoryShare(s)
	if len(shares) == 0 {
		return
	}
	r.println("")
	r.println(r.styles.Title.Render("By category"))
	t := table.New().
		Border(r.styles.Border).
		Headers("CATEGORY", "TOTAL", "SHARE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.styles.Header
			}
			if col > 0 {
				return lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, sh := range shares {
		t.Row(r.Chip(sh.Category), r.money(sh.Total), sh.Percent.StringFixed(1)+"%")
	}
	r.println(t.String())
}

// Categories lists the selectable categories.
func (r *Renderer) Categories() {
	for _, c := range core.Categories() {
		r.println(r.Chip(c))
	}
}

func (r *Renderer) Error(msg string) {
	r.println(r.styles.Error.Render(msg))
}

func (r *Renderer) Info(msg string) {
	r.println(msg)
}
