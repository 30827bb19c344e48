package worker

import (
	"context"
	"fmt"
	"log/slog"

	"expensetracker/internal/core"
	"expensetracker/internal/events"
)

// SheetSync is the spreadsheet side of the sync.
type SheetSync interface {
	Export(ctx context.Context, expenses []core.Expense) (int, error)
	Delete(ctx context.Context, id core.ID) error
}

// SyncWorker mirrors expense events into a spreadsheet.
type SyncWorker struct {
	sheets SheetSync
	logger *slog.Logger
}

func NewSyncWorker(sheets SheetSync, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{sheets: sheets, logger: logger}
}

// Handle applies one event. Returning an error makes the consumer requeue it.
func (w *SyncWorker) Handle(ctx context.Context, ev events.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		"type", ev.Type,
		"expense_id", ev.ExpenseID,
		"user_id", ev.UserID)

	switch ev.Type {
	case events.ExpenseCreated:
		if ev.Expense == nil {
			return fmt.Errorf("created event %s has no expense", ev.ExpenseID)
		}
		if _, err := w.sheets.Export(ctx, []core.Expense{*ev.Expense}); err != nil {
			return fmt.Errorf("sync expense to sheets: %w", err)
		}
	case events.ExpenseDeleted:
		if err := w.sheets.Delete(ctx, ev.ExpenseID); err != nil {
			return fmt.Errorf("delete expense from sheets: %w", err)
		}
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event type", "type", ev.Type)
	}
	return nil
}

// ExpenseSource lists expenses; an empty owner means every owner.
type ExpenseSource interface {
	ListExpenses(ctx context.Context, owner core.ID) ([]core.Expense, error)
}

// StartupSync exports whatever the sheet is missing, covering events that
// were published while the worker was down.
func (w *SyncWorker) StartupSync(ctx context.Context, src ExpenseSource) (int, error) {
	all, err := src.ListExpenses(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list expenses for startup sync: %w", err)
	}
	written, err := w.sheets.Export(ctx, all)
	if err != nil {
		return 0, fmt.Errorf("startup sync to sheets: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "checked", len(all), "exported", written)
	return written, nil
}
