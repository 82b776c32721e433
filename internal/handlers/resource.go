package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/resourcehub/apiserver/internal/auth"
	"github.com/resourcehub/apiserver/internal/services"
	"github.com/resourcehub/apiserver/internal/storage"
	"github.com/resourcehub/apiserver/internal/store"
	"github.com/resourcehub/apiserver/types"
)

const maxAttachmentBytes = 32 << 20

// ResourceHandler provides CRUD handlers for resources.
type ResourceHandler struct {
	resources   *services.ResourceService
	attachments *storage.Attachments
}

func NewResourceHandler(resources *services.ResourceService, attachments *storage.Attachments) *ResourceHandler {
	return &ResourceHandler{
		resources:   resources,
		attachments: attachments,
	}
}

// ResourceRouter registers resource routes on the given router.
// Attachment routes are mounted only when an object-storage backend is
// configured.
func ResourceRouter(r chi.Router, resources *services.ResourceService, attachments *storage.Attachments, guard *Guard) {
	handler := NewResourceHandler(resources, attachments)

	read := guard.Require(auth.ScopeResourcesRead)
	write := guard.Require(auth.ScopeResourcesWrite)

	r.With(read).Get("/", handler.ListResources)
	r.With(write).Post("/", handler.CreateResource)
	r.Route("/{resourceID}", func(r chi.Router) {
		r.With(read).Get("/", handler.GetResource)
		r.With(write).Patch("/", handler.UpdateResource)
		r.With(write).Put("/", handler.ReplaceResource)
		r.With(write).Delete("/", handler.DeleteResource)

		if attachments != nil {
			admin := guard.Require(auth.ScopeResourcesAdmin)
			r.With(admin).Put("/attachment", handler.PutAttachment)
			r.With(admin).Get("/attachment", handler.GetAttachment)
			r.With(admin).Delete("/attachment", handler.DeleteAttachment)
		}
	})
}

func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	skip, size, err := parseListQuery(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, err.Error()))
		return
	}

	resources, err := h.resources.List(r.Context(), skip, size)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to get resources").
				withInput(map[string]int{"skip": skip, "size": size}).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	writeJSON(w, http.StatusOK, resources)
}

func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, err.Error()))
		return
	}

	resource, err := h.resources.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound,
				newDetail(ErrorTypeNotFound, "resource not found").
					withInput(id.String()))
			return
		}
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to get resource").
				withInput(id.String()).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	writeJSON(w, http.StatusOK, resource)
}

func (h *ResourceHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	resource, ok := decodeResource(w, r)
	if !ok {
		return
	}

	created, err := h.resources.Create(r.Context(), resource)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to create resource").
				withInput(resource).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ResourceHandler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, err.Error()))
		return
	}

	var update struct {
		Name *string         `json:"name"`
		Data *map[string]any `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "invalid resource").
				withCtx(map[string]string{"error": err.Error()}))
		return
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "invalid resource").
				withCtx(map[string]string{"error": "name must not be empty"}))
		return
	}

	current, err := h.resources.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound,
				newDetail(ErrorTypeNotFound, "resource not found").
					withInput(id.String()))
			return
		}
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to get existing resource").
				withInput(id.String()).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	if update.Name != nil {
		current.Name = *update.Name
	}
	if update.Data != nil {
		current.Data = *update.Data
	}

	updated, err := h.resources.Update(r.Context(), current)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to update resource").
				withInput(id.String()).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *ResourceHandler) ReplaceResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, err.Error()))
		return
	}

	resource, ok := decodeResource(w, r)
	if !ok {
		return
	}
	resource.ID = id

	replaced, err := h.resources.Replace(r.Context(), resource)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to replace resource").
				withInput(resource).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	writeJSON(w, http.StatusOK, replaced)
}

func (h *ResourceHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseResourceID(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, err.Error()))
		return
	}

	if err := h.resources.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound,
				newDetail(ErrorTypeNotFound, "resource not found").
					withInput(id.String()))
			return
		}
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to delete resource").
				withInput(id.String()).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PutAttachment stores the request body as the resource's attachment.
func (h *ResourceHandler) PutAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveResource(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAttachmentBytes+1))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "unable to read attachment"))
		return
	}
	if len(body) > maxAttachmentBytes {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "attachment too large"))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.attachments.Put(r.Context(), id, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to store attachment").
				withInput(id.String()).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAttachment streams the resource's attachment.
func (h *ResourceHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveResource(w, r)
	if !ok {
		return
	}

	reader, err := h.attachments.Get(r.Context(), id)
	if err != nil {
		writeDetail(w, http.StatusNotFound,
			newDetail(ErrorTypeNotFound, "attachment not found").
				withInput(id.String()))
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

// DeleteAttachment removes the resource's attachment.
func (h *ResourceHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveResource(w, r)
	if !ok {
		return
	}

	if err := h.attachments.Delete(r.Context(), id); err != nil {
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to delete attachment").
				withInput(id.String()).
				withCtx(map[string]string{"error": err.Error()}))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveResource parses the path id and checks the resource exists.
func (h *ResourceHandler) resolveResource(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := parseResourceID(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, err.Error()))
		return uuid.Nil, false
	}

	if _, err := h.resources.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeDetail(w, http.StatusNotFound,
				newDetail(ErrorTypeNotFound, "resource not found").
					withInput(id.String()))
			return uuid.Nil, false
		}
		writeDetail(w, http.StatusInternalServerError,
			newDetail(ErrorTypeDatabase, "unable to get resource").
				withInput(id.String()).
				withCtx(map[string]string{"error": err.Error()}))
		return uuid.Nil, false
	}

	return id, true
}

func decodeResource(w http.ResponseWriter, r *http.Request) (types.Resource, bool) {
	var resource types.Resource
	if err := json.NewDecoder(r.Body).Decode(&resource); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "invalid resource").
				withCtx(map[string]string{"error": err.Error()}))
		return types.Resource{}, false
	}
	if strings.TrimSpace(resource.Name) == "" {
		writeDetail(w, http.StatusUnprocessableEntity,
			newDetail(ErrorTypeInvalidRequest, "invalid resource").
				withCtx(map[string]string{"error": "name must not be empty"}))
		return types.Resource{}, false
	}
	return resource, true
}

func parseResourceID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "resourceID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid resource id")
	}
	return id, nil
}
