package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ks2178o2/callharbor/internal/export"
	"github.com/ks2178o2/callharbor/internal/orchestrator"
	"github.com/ks2178o2/callharbor/internal/repository"
	"github.com/ks2178o2/callharbor/internal/sharing"
	"github.com/ks2178o2/callharbor/internal/tenancy"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Features     *tenancy.FeatureService
	Quotas       *tenancy.QuotaService
	Sharing      *sharing.Service
	Export       *export.Service
	Jobs         repository.ImportJobRepository

	Token         string
	DefaultBucket string
	Logger        *slog.Logger
}

// NewHandler builds the router. Every route sits behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Post("/imports", handleStartImport(deps))
	r.Get("/imports/{id}", handleJobStatus(deps))
	r.Get("/imports/{id}/export", handleExportJob(deps))
	r.Post("/imports/{id}/files/{fileID}/retranscribe", handleRetranscribe(deps))
	r.Post("/transcriptions/complete", handleTranscriptionComplete(deps))

	r.Get("/orgs/{id}/features", handleEffectiveFeatures(deps))
	r.Get("/orgs/{id}/features/{key}/override", handleOverrideStatus(deps))
	r.Get("/orgs/{id}/features/{key}/can-enable", handleCanEnable(deps))
	r.Get("/orgs/{id}/chain", handleInheritanceChain(deps))
	r.Post("/orgs/{id}/quotas/check", handleQuotaCheck(deps))
	r.Post("/orgs/{id}/quotas/update", handleQuotaUpdate(deps))
	r.Post("/orgs/{id}/quotas/reset", handleQuotaReset(deps))
	r.Get("/orgs/{id}/sharing/pending", handlePendingApprovals(deps))

	r.Post("/sharing/children", handleShareToChildren(deps))
	r.Post("/sharing/parent", handleShareToParent(deps))
	r.Post("/sharing/{id}/approve", handleApproveShare(deps))
	r.Post("/sharing/{id}/reject", handleRejectShare(deps))

	return r
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
