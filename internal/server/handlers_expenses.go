package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"expensetracker/internal/core"
	"expensetracker/internal/events"
	applog "expensetracker/internal/log"
	"expensetracker/internal/storage"
)

// allOwners keys the unfiltered listing in the cache.
const allOwners = "*"

func listingKey(owner core.ID) string {
	if owner.IsZero() {
		return allOwners
	}
	return "user:" + owner.String()
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	owner := core.ID(r.URL.Query().Get("userId"))
	key := listingKey(owner)

	if cached, ok := s.listings.Get(key); ok {
		s.metrics.CacheHit()
		writeJSON(w, http.StatusOK, cached)
		return
	}
	s.metrics.CacheMiss()

	list, err := s.repo.ListExpenses(r.Context(), owner)
	if err != nil {
		s.storageFailure(w, r, applog.OpList, err)
		return
	}
	s.listings.Set(key, list)
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.repo.GetExpense(r.Context(), core.ID(chi.URLParam(r, "id")))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	if err != nil {
		s.storageFailure(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in core.Expense
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Description = sanitizeInput(in.Description)
	if msg := validateExpense(in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now().UTC()
	}

	created, err := s.repo.CreateExpense(ctx, in)
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, http.StatusConflict, "expense already exists")
		return
	}
	if err != nil {
		s.storageFailure(w, r, applog.OpCreate, err)
		return
	}

	s.invalidate(created.OwnerID)
	s.metrics.ExpenseCreated()
	applog.LogExpenseCreated(ctx,
		created.ID.String(), created.OwnerID.String(), created.Category.String(), created.Amount.String())
	s.publish(ctx, events.NewCreated(created, s.now()))

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.ID(chi.URLParam(r, "id"))

	existing, err := s.repo.GetExpense(ctx, id)
	if err == nil {
		err = s.repo.DeleteExpense(ctx, id)
	}
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	if err != nil {
		s.storageFailure(w, r, applog.OpDelete, err)
		return
	}

	s.invalidate(existing.OwnerID)
	s.metrics.ExpenseDeleted()
	applog.FromContext(ctx).InfoContext(ctx, "Expense deleted",
		applog.FieldExpenseID, id.String(),
		applog.FieldUserID, existing.OwnerID.String())
	s.publish(ctx, events.NewDeleted(id, existing.OwnerID, s.now()))

	writeJSON(w, http.StatusOK, struct{}{})
}

// validateExpense returns a client-facing message, or "" when e is storable.
func validateExpense(e core.Expense) string {
	switch {
	case e.OwnerID.IsZero():
		return "userId is required"
	case !e.Category.IsValid():
		return "category is not recognised"
	case !e.Amount.IsPositive():
		return "amount must be a positive number"
	case e.Date.IsZero():
		return "date must be a valid YYYY-MM-DD date"
	case e.Description == "":
		return "description is required"
	}
	return ""
}

func (s *Server) invalidate(owner core.ID) {
	s.listings.Delete(listingKey(owner))
	s.listings.Delete(allOwners)
}

// publish never fails the request: the write already happened.
func (s *Server) publish(ctx context.Context, ev events.ExpenseEvent) {
	err := s.publisher.Publish(context.WithoutCancel(ctx), ev)
	s.metrics.EventPublished(string(ev.Type), err)
	if err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentAMQP).WarnContext(ctx, "Failed to publish expense event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldExpenseID, ev.ExpenseID.String(),
			applog.FieldError, err)
	}
}
