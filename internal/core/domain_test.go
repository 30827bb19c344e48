package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var rec UserRecord
	if err := json.Unmarshal([]byte(`{"id": 3, "username": "haleem"}`), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != "3" {
		t.Fatalf("numeric id: got %q", rec.ID)
	}
	if err := json.Unmarshal([]byte(`{"id": "a1b2"}`), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != "a1b2" {
		t.Fatalf("string id: got %q", rec.ID)
	}
	if err := json.Unmarshal([]byte(`{"id": {}}`), &rec); err == nil {
		t.Fatal("expected error for object id")
	}
}

func TestUserRecordStripsPassword(t *testing.T) {
	u := UserRecord{ID: "1", Username: "admin", Password: "admin123", Name: "Admin"}.User()
	b, _ := json.Marshal(u)
	if string(b) != `{"id":"1","username":"admin","name":"Admin"}` {
		t.Fatalf("got %s", b)
	}
}

func TestSessionClone(t *testing.T) {
	s := Session{User: &User{ID: "1", Name: "A"}, Status: StatusAuthenticated}
	c := s.Clone()
	c.User.Name = "B"
	if s.User.Name != "A" {
		t.Fatal("clone shares user")
	}
	if !c.IsAuthenticated() {
		t.Fatal("clone lost status")
	}
	if Anonymous().IsAuthenticated() {
		t.Fatal("anonymous must not be authenticated")
	}
}

func TestDraftValidate(t *testing.T) {
	valid := Draft{Category: "Food", Amount: "12.50", Date: "2024-03-05", Description: " lunch "}
	cases := []struct {
		name  string
		mut   func(d *Draft)
		owner ID
		field string
	}{
		{"ok", func(*Draft) {}, "1", ""},
		{"empty category", func(d *Draft) { d.Category = "" }, "1", "category"},
		{"unknown category", func(d *Draft) { d.Category = "Travel" }, "1", "category"},
		{"zero amount", func(d *Draft) { d.Amount = "0" }, "1", "amount"},
		{"text amount", func(d *Draft) { d.Amount = "ten" }, "1", "amount"},
		{"bad date", func(d *Draft) { d.Date = "2024-13-01" }, "1", "date"},
		{"empty description", func(d *Draft) { d.Description = "   " }, "1", "description"},
		{"no owner", func(*Draft) {}, "", "userId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := valid
			tc.mut(&d)
			e, err := d.Validate(tc.owner)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if e.Description != "lunch" || e.OwnerID != "1" || !e.Date.Equal(NewDate(2024, 3, 5)) {
					t.Fatalf("unexpected expense %+v", e)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field: got %q want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestDateJSON(t *testing.T) {
	var e Expense
	raw := `{"id":"x","userId":1,"category":"Food","amount":"5","date":"2024-01-31T22:00:00Z","description":"d"}`
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatal(err)
	}
	if e.Date.String() != "2024-01-31" {
		t.Fatalf("date: got %s", e.Date)
	}
	if e.OwnerID != "1" {
		t.Fatalf("owner: got %s", e.OwnerID)
	}
	if err := json.Unmarshal([]byte(`{"date":"yesterday"}`), &e); err != nil {
		t.Fatal(err)
	}
	if !e.Date.IsZero() {
		t.Fatalf("expected zero date, got %s", e.Date)
	}
	b, _ := json.Marshal(NewDate(2024, 2, 9))
	if string(b) != `"2024-02-09"` {
		t.Fatalf("marshal: got %s", b)
	}
}

func TestDateInMonth(t *testing.T) {
	d := NewDate(2023, 12, 31)
	if !d.InMonth(2023, time.December) || d.InMonth(2024, time.December) {
		t.Fatal("InMonth mismatch")
	}
	if (Date{}).InMonth(1, time.January) {
		t.Fatal("zero date is in no month")
	}
}

func TestCategories(t *testing.T) {
	cats := Categories()
	if len(cats) != 7 || cats[0] != Food || cats[6] != Other {
		t.Fatalf("unexpected order %v", cats)
	}
	cats[0] = "mutated"
	if Categories()[0] != Food {
		t.Fatal("Categories leaked internal slice")
	}
	if Category("Travel").IsValid() {
		t.Fatal("Travel is not a category")
	}
	if Category("Travel").Color() != Other.Color() {
		t.Fatal("unknown category should fall back to Other color")
	}
}

func TestAuthErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(&AuthError{Reason: ErrRequestFailed, Cause: cause})
	if !errors.Is(err, ErrRequestFailed) || !errors.Is(err, cause) {
		t.Fatalf("unwrap failed: %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("wrong reason matched")
	}
}
