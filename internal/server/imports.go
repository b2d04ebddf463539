package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ks2178o2/callharbor/internal/common"
)

const maxRequestBody = 1 << 20

type startImportRequest struct {
	UserID       uuid.UUID `json:"user_id"`
	CustomerName string    `json:"customer_name"`
	SourceURL    string    `json:"source_url"`
	BucketName   string    `json:"bucket_name,omitempty"`
	CallLogURL   string    `json:"call_log_url,omitempty"`
}

func handleStartImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startImportRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
			return
		}
		if req.UserID == uuid.Nil || req.SourceURL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request", "user_id and source_url are required")
			return
		}
		bucket := req.BucketName
		if bucket == "" {
			bucket = deps.DefaultBucket
		}

		job, err := deps.Jobs.Create(r.Context(), req.UserID, req.CustomerName, req.SourceURL, bucket)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to create import job")
			return
		}

		// The job runs detached from the request; its progress is observable
		// only through the status endpoint.
		go func() {
			if err := deps.Orchestrator.Run(context.Background(), job.ID, req.CallLogURL); err != nil {
				deps.Logger.Error("server.import.run_failed", "job_id", job.ID, "error", err)
			}
		}()

		respondJSON(w, http.StatusAccepted, job)
	}
}

func handleJobStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid job id")
			return
		}
		includeFiles := r.URL.Query().Get("include_files") == "1"

		status, err := deps.Orchestrator.JobStatus(r.Context(), jobID, includeFiles)
		if errors.Is(err, common.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "import job %s not found", jobID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to resolve job status")
			return
		}
		respondJSON(w, http.StatusOK, status)
	}
}

func handleRetranscribe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid file id")
			return
		}

		err = deps.Orchestrator.Retranscribe(r.Context(), fileID)
		if errors.Is(err, common.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "import file %s not found", fileID)
			return
		}
		if errors.Is(err, common.ErrInvalidInput) {
			httpError(w, http.StatusConflict, "invalid_state", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to start retranscription")
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]any{"status": "retranscribing", "file_id": fileID})
	}
}

type transcriptionCompleteRequest struct {
	CallRecordID uuid.UUID `json:"call_record_id"`
	FileID       uuid.UUID `json:"file_id,omitempty"`
	Transcript   string    `json:"transcript"`
}

func handleTranscriptionComplete(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transcriptionCompleteRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<20)).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "malformed json body: %v", err)
			return
		}
		if req.CallRecordID == uuid.Nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "call_record_id is required")
			return
		}

		err := deps.Orchestrator.CompleteTranscription(r.Context(), req.CallRecordID, req.FileID, req.Transcript)
		if errors.Is(err, common.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "call record %s not found", req.CallRecordID)
			return
		}
		if errors.Is(err, common.ErrInvalidInput) {
			httpError(w, http.StatusBadRequest, "invalid_request", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to apply transcription")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"status": "analyzed", "call_record_id": req.CallRecordID})
	}
}

func handleExportJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request", "invalid job id")
			return
		}

		data, err := deps.Export.ExportJobXLSX(r.Context(), jobID)
		if errors.Is(err, common.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "import job %s not found", jobID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "failed to build export")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="import-`+jobID.String()+`.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
