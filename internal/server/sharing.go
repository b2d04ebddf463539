package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type shareRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	ItemID         uuid.UUID `json:"item_id"`
	RAGFeature     string    `json:"rag_feature"`
	ActorID        uuid.UUID `json:"actor_id"`
}

func decodeShareRequest(w http.ResponseWriter, r *http.Request) (*shareRequest, bool) {
	var req shareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
		return nil, false
	}
	if req.OrganizationID == uuid.Nil || req.ItemID == uuid.Nil {
		httpError(w, http.StatusBadRequest, "invalid_request", "organization_id and item_id are required")
		return nil, false
	}
	return &req, true
}

func handleShareToChildren(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeShareRequest(w, r)
		if !ok {
			return
		}
		result, err := deps.Sharing.ShareToChildren(r.Context(), req.OrganizationID, req.ItemID, req.RAGFeature, req.ActorID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to share item")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func handleShareToParent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeShareRequest(w, r)
		if !ok {
			return
		}
		result, err := deps.Sharing.ShareToParent(r.Context(), req.OrganizationID, req.ItemID, req.RAGFeature, req.ActorID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to share item")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

type approvalRequest struct {
	ActorID uuid.UUID `json:"actor_id"`
	Reason  string    `json:"reason,omitempty"`
}

func handleApproveShare(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sharingID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid sharing request id")
			return
		}
		var req approvalRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
			return
		}
		result, err := deps.Sharing.ApproveSharedItem(r.Context(), sharingID, req.ActorID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to approve shared item")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func handleRejectShare(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sharingID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid sharing request id")
			return
		}
		var req approvalRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
			return
		}
		result, err := deps.Sharing.RejectSharedItem(r.Context(), sharingID, req.ActorID, req.Reason)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to reject shared item")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func handlePendingApprovals(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDParam(w, r)
		if !ok {
			return
		}
		pending, err := deps.Sharing.GetPendingApprovals(r.Context(), orgID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to list pending approvals")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"pending": pending, "count": len(pending)})
	}
}
