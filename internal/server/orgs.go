package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/internal/common"
	"github.com/ks2178o2/callharbor/internal/entity"
	"github.com/ks2178o2/callharbor/internal/tenancy"
)

func orgIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request", "invalid organization id")
		return uuid.Nil, false
	}
	return id, true
}

func handleEffectiveFeatures(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		features, err := deps.Features.GetEffectiveFeatures(r.Context(), orgID)
		if errors.Is(err, common.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "organization %s not found", orgID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to resolve features")
			return
		}
		respondJSON(w, http.StatusOK, features)
	}
}

func handleOverrideStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		status, err := deps.Features.GetOverrideStatus(r.Context(), orgID, chi.URLParam(r, "key"))
		if errors.Is(err, common.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "organization %s not found", orgID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to resolve override status")
			return
		}
		respondJSON(w, http.StatusOK, status)
	}
}

func handleCanEnable(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		result, err := deps.Features.CanEnableFeature(r.Context(), orgID, chi.URLParam(r, "key"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to evaluate enablement")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func handleInheritanceChain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		chain, err := deps.Features.GetInheritanceChain(r.Context(), orgID)
		if errors.Is(err, common.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "organization %s not found", orgID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to resolve hierarchy chain")
			return
		}
		respondJSON(w, http.StatusOK, chain)
	}
}

type quotaRequest struct {
	QuotaType entity.QuotaType `json:"quota_type"`
	Quantity  int              `json:"quantity"`
	Operation string           `json:"operation,omitempty"`
}

func handleQuotaCheck(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		var req quotaRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
			return
		}
		result, err := deps.Quotas.CheckQuotaLimits(r.Context(), orgID, req.QuotaType, req.Quantity)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to check quota")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func handleQuotaUpdate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		var req quotaRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
			return
		}
		result, err := deps.Quotas.UpdateQuotaUsage(r.Context(), orgID, req.QuotaType, req.Quantity, tenancy.QuotaOperation(req.Operation))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to update quota")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func handleQuotaReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		var req quotaRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
			return
		}
		result, err := deps.Quotas.ResetQuotaUsage(r.Context(), orgID, req.QuotaType)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to reset quota")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}
