package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/storage"
)

// handleListUsers mirrors json-server: ?username= filters by exact match.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		users []core.UserRecord
		err   error
	)
	if r.URL.Query().Has("username") {
		users, err = s.repo.FindUsersByUsername(ctx, r.URL.Query().Get("username"))
	} else {
		users, err = s.repo.ListUsers(ctx)
	}
	if err != nil {
		s.storageFailure(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.repo.GetUser(r.Context(), core.ID(chi.URLParam(r, "id")))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	if err != nil {
		s.storageFailure(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in core.UserRecord
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Username = sanitizeInput(in.Username)
	in.Name = sanitizeInput(in.Name)
	if in.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if in.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	created, err := s.repo.CreateUser(ctx, in)
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		s.storageFailure(w, r, applog.OpCreate, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "User created",
		applog.FieldUserID, created.ID.String(),
		applog.FieldUsername, created.Username)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch core.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch.Name = sanitizeInput(patch.Name)
	if patch.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	updated, err := s.repo.UpdateUser(ctx, core.ID(chi.URLParam(r, "id")), patch)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	if err != nil {
		s.storageFailure(w, r, applog.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) storageFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	applog.FromContext(ctx).WithComponent(applog.ComponentStorage).ErrorContext(ctx, "Storage operation failed",
		applog.FieldOperation, op,
		applog.FieldError, err)
	writeError(w, http.StatusInternalServerError, "storage unavailable")
}
