package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/resourcehub/apiserver/internal/auth"
	"github.com/resourcehub/apiserver/internal/services"
	"github.com/resourcehub/apiserver/internal/store"
	"github.com/resourcehub/apiserver/types"
)

// UserHandler provides the current-user endpoints.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, users *services.UserService, guard *Guard) {
	handler := NewUserHandler(users)

	r.With(guard.Require(auth.ScopeUserRead)).Get("/", handler.GetCurrentUser)
	r.With(guard.Require(auth.ScopeUserWrite)).Patch("/", handler.UpdateCurrentUser)
	r.With(guard.Require(auth.ScopeUserWrite)).Post("/", handler.CreateUser)
}

// GetCurrentUser returns the authenticated principal.
func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := PrincipalFromContext(r.Context())
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized,
			newDetail(ErrorTypeUnauthorized, msgCredentials))
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// UpdateCurrentUser applies a partial update to the principal's public
// fields.
func (h *UserHandler) UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized,
			newDetail(ErrorTypeUnauthorized, msgCredentials))
		return
	}

	var update types.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "invalid user").
				withCtx(map[string]string{"error": err.Error()}))
		return
	}
	if err := validateUserUpdate(update); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "invalid user").
				withInput(map[string]any{"id": principal.ID}).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	current, err := h.users.Get(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound,
				newDetail(ErrorTypeNotFound, "resource not found").
					withInput(map[string]any{"id": principal.ID}))
			return
		}
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to get current user").
				withInput(map[string]any{"id": principal.ID}).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	current.Apply(update)

	updated, err := h.users.Update(r.Context(), current)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound,
				newDetail(ErrorTypeNotFound, "resource not found").
					withInput(map[string]any{"id": principal.ID}))
			return
		}
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to update user").
				withInput(map[string]any{"id": principal.ID}).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	writeJSON(w, http.StatusOK, updated.Public())
}

// CreateUser creates a user from a UserCreate payload, hashing the
// initial password. Only a superuser may grant scopes to the new
// account; otherwise any user:write holder could mint a principal more
// powerful than themselves.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req types.UserCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "invalid user").
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "id and password are required"))
		return
	}

	if len(req.Scopes) > 0 {
		principal, err := PrincipalFromContext(r.Context())
		if err != nil || !principal.HasScope(auth.ScopeSuperuser) {
			writeDetail(w, http.StatusUnauthorized,
				newDetail(ErrorTypeUnauthorized, "only a superuser may grant scopes").
					withInput(map[string]any{"scopes": req.Scopes}))
			return
		}
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to create user"))
		return
	}

	created, err := h.users.Create(r.Context(), types.User{
		ID:             req.ID,
		Name:           req.Name,
		Email:          req.Email,
		Status:         req.Status,
		Data:           req.Data,
		Scopes:         req.Scopes,
		HashedPassword: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			writeDetail(w, http.StatusConflict,
				newDetail(ErrorTypeInvalidRequest, "user already exists").
					withInput(map[string]any{"id": req.ID}))
			return
		}
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to create user").
				withInput(map[string]any{"id": req.ID}).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	writeJSON(w, http.StatusCreated, created.Public())
}

func validateUserUpdate(update types.UserUpdate) error {
	if update.Name != nil && *update.Name == "" {
		return errors.New("name must not be empty")
	}
	if update.Email != nil && *update.Email == "" {
		return errors.New("email must not be empty")
	}
	if update.Status != nil && *update.Status == "" {
		return errors.New("status must not be empty")
	}
	return nil
}
