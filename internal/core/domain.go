package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	// StatusFailed is anonymous with LastError describing the failed attempt.
	StatusFailed Status = "failed"
)

type (
	// ID is a gateway-assigned identifier. Document stores hand out both
	// numbers and strings, so decoding accepts either.
	ID string

	Status string

	// User is the session's view of an account; it never carries a password.
	User struct {
		ID       ID     `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	}

	// UserRecord is the gateway's user document.
	UserRecord struct {
		ID       ID     `json:"id,omitempty"`
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}

	// UserPatch carries the mutable profile fields.
	UserPatch struct {
		Name string `json:"name"`
	}

	Session struct {
		User      *User
		Status    Status
		LastError string
	}

	Expense struct {
		ID          ID        `json:"id,omitempty"`
		OwnerID     ID        `json:"userId"`
		Category    Category  `json:"category"`
		Amount      Amount    `json:"amount"`
		Date        Date      `json:"date"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// Draft is an expense as typed by the user, before validation.
	Draft struct {
		Category    string
		Amount      string
		Date        string
		Description string
	}
)

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return id == "" }

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// User strips the password from the record.
func (r UserRecord) User() User {
	return User{ID: r.ID, Username: r.Username, Name: r.Name}
}

// Anonymous returns the session every client starts with.
func Anonymous() Session {
	return Session{Status: StatusAnonymous}
}

func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Validate checks the draft and converts it into an expense owned by owner.
// createdAt is stamped by the caller.
func (d Draft) Validate(owner ID) (Expense, error) {
	category := Category(strings.TrimSpace(d.Category))
	if category == "" {
		return Expense{}, &ValidationError{Field: "category", Reason: "is required"}
	}
	if !category.IsValid() {
		return Expense{}, &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return Expense{}, &ValidationError{Field: "amount", Reason: err.Error()}
	}
	date, err := ParseDate(d.Date)
	if err != nil {
		return Expense{}, &ValidationError{Field: "date", Reason: "must be a valid YYYY-MM-DD date"}
	}
	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		return Expense{}, &ValidationError{Field: "description", Reason: "is required"}
	}
	if owner.IsZero() {
		return Expense{}, &ValidationError{Field: "userId", Reason: "no authenticated user"}
	}
	return Expense{
		OwnerID:     owner,
		Category:    category,
		Amount:      amount,
		Date:        date,
		Description: desc,
	}, nil
}
