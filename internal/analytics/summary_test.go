package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

func e(cat core.Category, amount float64, date core.Date) core.Expense {
	return core.Expense{Category: cat, Amount: core.NewAmount(amount), Date: date, Description: "x"}
}

var now = time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, now)
	if !s.Total.IsZero() || len(s.PerCategory) != 0 || s.Count != 0 {
		t.Fatalf("unexpected %+v", s)
	}
	if !s.Average().IsZero() {
		t.Fatalf("average of empty = %s", s.Average())
	}
}

func TestSummarizeTodayAndAverage(t *testing.T) {
	today := core.DateOf(now)
	s := Summarize([]core.Expense{e(core.Food, 50, today), e(core.Food, 20, today)}, now)
	if s.Total.String() != "70" || s.Today.String() != "70" {
		t.Fatalf("total=%s today=%s", s.Total, s.Today)
	}
	if s.Average().String() != "35" {
		t.Fatalf("average=%s", s.Average())
	}
}

func TestMonthOverMonth(t *testing.T) {
	cases := []struct {
		name      string
		expenses  []core.Expense
		want      string
		thisMonth string
		lastMonth string
	}{
		{"zero to 120", []core.Expense{e(core.Food, 120, core.NewDate(2024, 3, 2))}, "100", "120", "0"},
		{"zero to zero", nil, "100", "0", "0"},
		{"doubled", []core.Expense{e(core.Food, 100, core.NewDate(2024, 3, 1)), e(core.Bills, 50, core.NewDate(2024, 2, 29))}, "100", "100", "50"},
		{"halved", []core.Expense{e(core.Food, 25, core.NewDate(2024, 3, 1)), e(core.Bills, 50, core.NewDate(2024, 2, 1))}, "-50", "25", "50"},
		{"dropped to zero", []core.Expense{e(core.Bills, 80, core.NewDate(2024, 2, 10))}, "-100", "0", "80"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Summarize(tc.expenses, now)
			if !s.MonthOverMonth.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("mom=%s want %s", s.MonthOverMonth, tc.want)
			}
			if s.ThisMonth.String() != tc.thisMonth || s.LastMonth.String() != tc.lastMonth {
				t.Fatalf("this=%s last=%s", s.ThisMonth, s.LastMonth)
			}
		})
	}
}

func TestDecemberPrecedesJanuary(t *testing.T) {
	jan := time.Date(2025, time.January, 3, 9, 0, 0, 0, time.UTC)
	s := Summarize([]core.Expense{
		e(core.Food, 40, core.NewDate(2024, 12, 31)),
		e(core.Food, 10, core.NewDate(2023, 12, 31)),
		e(core.Food, 60, core.NewDate(2025, 1, 2)),
	}, jan)
	if s.LastMonth.String() != "40" || s.ThisMonth.String() != "60" {
		t.Fatalf("this=%s last=%s", s.ThisMonth, s.LastMonth)
	}
	if !s.MonthOverMonth.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("mom=%s", s.MonthOverMonth)
	}
}

func TestPerCategoryOrderAndOmission(t *testing.T) {
	s := Summarize([]core.Expense{
		e(core.Other, 5, core.NewDate(2024, 1, 1)),
		e(core.Food, 1, core.NewDate(2024, 1, 1)),
		e(core.Bills, 2, core.NewDate(2024, 1, 1)),
		e(core.Food, 3, core.NewDate(2024, 1, 1)),
	}, now)
	want := []struct {
		cat   core.Category
		total string
	}{{core.Food, "4"}, {core.Bills, "2"}, {core.Other, "5"}}
	if len(s.PerCategory) != len(want) {
		t.Fatalf("got %+v", s.PerCategory)
	}
	for i, w := range want {
		got := s.PerCategory[i]
		if got.Category != w.cat || got.Total.String() != w.total || got.Color != w.cat.Color() {
			t.Fatalf("entry %d: got %+v want %v", i, got, w)
		}
	}
}

func TestMissingAmountsCountAsZero(t *testing.T) {
	var list []core.Expense
	raw := `[{"id":"1","category":"Food","date":"2024-03-15","description":"a"},
	         {"id":"2","category":"Food","amount":"abc","date":"2024-03-15","description":"b"},
	         {"id":"3","category":"Food","amount":"12.5","date":"2024-03-15","description":"c"}]`
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		t.Fatal(err)
	}
	s := Summarize(list, now)
	if s.Total.String() != "12.5" || s.Count != 3 {
		t.Fatalf("total=%s count=%d", s.Total, s.Count)
	}
}

// Round trip: totals equal a direct sum over the records.
func TestSummaryMatchesDirectSum(t *testing.T) {
	list := []core.Expense{
		e(core.Housing, 1200.10, core.NewDate(2024, 3, 1)),
		e(core.Transport, 33.33, core.NewDate(2024, 2, 11)),
		e(core.Shopping, 0.07, core.NewDate(2023, 7, 4)),
		e(core.Entertainment, 19.99, core.NewDate(2024, 3, 15)),
	}
	direct := decimal.Zero
	for _, x := range list {
		direct = direct.Add(x.Amount.Decimal)
	}
	s := Summarize(list, now)
	if !s.Total.Equal(direct) {
		t.Fatalf("total=%s direct=%s", s.Total, direct)
	}
	sum := decimal.Zero
	for _, ct := range s.PerCategory {
		sum = sum.Add(ct.Total.Decimal)
	}
	if !sum.Equal(direct) {
		t.Fatalf("per category sum=%s direct=%s", sum, direct)
	}
}

func TestTrendAndShare(t *testing.T) {
	s := Summarize([]core.Expense{
		e(core.Food, 75, core.NewDate(2024, 3, 1)),
		e(core.Bills, 25, core.NewDate(2024, 2, 1)),
	}, now)
	if TrendOf(s) != TrendUp || TrendUp.String() != "up" {
		t.Fatalf("trend=%v", TrendOf(s))
	}
	shares := CategoryShare(s)
	if len(shares) != 2 || !shares[0].Percent.Equal(decimal.NewFromInt(75)) || !shares[1].Percent.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("shares=%+v", shares)
	}

	down := Summarize([]core.Expense{e(core.Food, 10, core.NewDate(2024, 2, 1))}, now)
	if TrendOf(down) != TrendDown {
		t.Fatalf("trend=%v", TrendOf(down))
	}
}
