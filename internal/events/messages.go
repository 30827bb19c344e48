package events

import (
	"encoding/json"
	"fmt"
	"time"

	"expensetracker/internal/core"
)

type Type string

const (
	ExpenseCreated Type = "expense.created"
	ExpenseDeleted Type = "expense.deleted"
)

// ExpenseEvent describes one committed change to the expense collection.
// Created events carry the full expense so consumers need no database access.
type ExpenseEvent struct {
	Type      Type          `json:"type"`
	ExpenseID core.ID       `json:"expenseId"`
	UserID    core.ID       `json:"userId"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewCreated(e core.Expense, now time.Time) ExpenseEvent {
	return ExpenseEvent{
		Type:      ExpenseCreated,
		ExpenseID: e.ID,
		UserID:    e.OwnerID,
		Expense:   &e,
		Timestamp: now.UTC(),
	}
}

func NewDeleted(id, owner core.ID, now time.Time) ExpenseEvent {
	return ExpenseEvent{
		Type:      ExpenseDeleted,
		ExpenseID: id,
		UserID:    owner,
		Timestamp: now.UTC(),
	}
}

func (m ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventFromJSON decodes and sanity-checks a message body.
func EventFromJSON(data []byte) (ExpenseEvent, error) {
	var m ExpenseEvent
	if err := json.Unmarshal(data, &m); err != nil {
		return ExpenseEvent{}, err
	}
	switch m.Type {
	case ExpenseCreated:
		if m.Expense == nil {
			return ExpenseEvent{}, fmt.Errorf("%s event without expense", m.Type)
		}
	case ExpenseDeleted:
	default:
		return ExpenseEvent{}, fmt.Errorf("unknown event type %q", m.Type)
	}
	if m.ExpenseID.IsZero() {
		return ExpenseEvent{}, fmt.Errorf("%s event without expense id", m.Type)
	}
	return m, nil
}
