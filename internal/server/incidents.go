package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/replaystack/incident-replay/internal/domain"
	"github.com/replaystack/incident-replay/internal/storage"
)

// Resolver runs one resolution attempt on an incident.
type Resolver interface {
	Resolve(ctx context.Context, inc *domain.Incident, mode domain.ResolutionMode) (*domain.Incident, error)
}

// SnapshotExtractor exposes raw snapshot extraction for diagnostics.
type SnapshotExtractor interface {
	Extract(ctx context.Context, erpReference string) *domain.ERPSnapshot
}

// IncidentHandler serves the incident intake and resolution routes.
type IncidentHandler struct {
	store       storage.IncidentStore
	resolver    Resolver
	extractor   SnapshotExtractor
	defaultMode domain.ResolutionMode
}

// NewIncidentHandler wires the incident routes' dependencies.
func NewIncidentHandler(store storage.IncidentStore, resolver Resolver, extractor SnapshotExtractor, defaultMode domain.ResolutionMode) *IncidentHandler {
	return &IncidentHandler{
		store:       store,
		resolver:    resolver,
		extractor:   extractor,
		defaultMode: defaultMode,
	}
}

// Mount attaches the incident routes to the router.
func (h *IncidentHandler) Mount(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Post("/", h.createIncident)
		r.Get("/", h.listIncidents)
		r.Get("/{id}", h.getIncident)
		r.Post("/{id}/resolve", h.resolveIncident)
	})
	r.Get("/diagnostics/snapshot/{reference}", h.snapshotDiagnostics)
}

type createIncidentRequest struct {
	ERPReference string `json:"erp_reference"`
	IncidentType string `json:"incident_type"`
	Description  string `json:"description"`
}

func (h *IncidentHandler) createIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.ERPReference == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "erp_reference is required")
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "description is required")
		return
	}

	inc := &domain.Incident{
		ID:           uuid.New().String(),
		ERPReference: req.ERPReference,
		IncidentType: string(domain.ParseIncidentType(req.IncidentType)),
		Description:  req.Description,
		Status:       domain.StatusOpen,
	}

	if err := h.store.CreateIncident(r.Context(), inc); err != nil {
		if errors.Is(err, storage.ErrDuplicateReference) {
			writeError(w, http.StatusConflict, "duplicate_reference", "an incident for this ERP reference already exists")
			return
		}
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to create incident")
		return
	}

	writeJSON(w, http.StatusCreated, inc)
}

func (h *IncidentHandler) listIncidents(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		Status: domain.Status(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Offset = n
		}
	}

	incidents, err := h.store.ListIncidents(r.Context(), opts)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to list incidents")
		return
	}
	if incidents == nil {
		incidents = []*domain.Incident{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (h *IncidentHandler) getIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.store.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "incident not found")
			return
		}
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to get incident")
		return
	}

	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentHandler) resolveIncident(w http.ResponseWriter, r *http.Request) {
	mode, ok := domain.ParseResolutionMode(r.URL.Query().Get("mode"), h.defaultMode)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "mode must be \"rule\" or \"ai\"")
		return
	}

	inc, err := h.store.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "incident not found")
			return
		}
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to get incident")
		return
	}

	AddLogField(r.Context(), "incident_id", inc.ID)
	AddLogField(r.Context(), "mode", string(mode))

	resolved, err := h.resolver.Resolve(r.Context(), inc, mode)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "resolution_error", "failed to persist resolution outcome")
		return
	}

	writeJSON(w, http.StatusOK, resolved)
}

// snapshotDiagnostics returns the raw extraction result for an ERP
// reference without touching any incident. Useful for checking what the
// record system actually returns.
func (h *IncidentHandler) snapshotDiagnostics(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "reference is required")
		return
	}

	snap := h.extractor.Extract(r.Context(), reference)
	writeJSON(w, http.StatusOK, snap)
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Type: errType, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
