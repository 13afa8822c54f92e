package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/siamlabs/siam/internal/ingest"
	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/tenant"
)

// KnowledgeStore is the management surface of the knowledge store.
type KnowledgeStore interface {
	Pinger
	Delete(ctx context.Context, tn tenant.Tenancy, sourceType knowledge.SourceType, sourceID string) error
	DeduplicateCrawl(ctx context.Context, tn tenant.Tenancy) (knowledge.DedupSummary, error)
}

// BatchIngester embeds and upserts document batches.
type BatchIngester interface {
	IngestBatch(ctx context.Context, tn tenant.Tenancy, docs []ingest.Document) (ingest.Summary, error)
}

// KnowledgeHandler handles ingestion and store management endpoints.
//
// Endpoints:
//   - POST   /api/knowledge       - batch document ingestion
//   - DELETE /api/knowledge       - delete one record by source
//   - POST   /api/knowledge/dedup - deduplicate crawled records
type KnowledgeHandler struct {
	store    KnowledgeStore
	ingester BatchIngester
	logger   *slog.Logger
}

// NewKnowledgeHandler creates a new knowledge handler.
func NewKnowledgeHandler(store KnowledgeStore, ingester BatchIngester, logger *slog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{store: store, ingester: ingester, logger: logger}
}

// RegisterRoutes registers knowledge routes on the given mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.store == nil || h.ingester == nil {
		h.logger.Warn("KnowledgeHandler: store or ingester is nil, knowledge endpoints not registered")
		return
	}
	mux.HandleFunc("POST /api/knowledge", h.handleIngest)
	mux.HandleFunc("DELETE /api/knowledge", h.handleDelete)
	mux.HandleFunc("POST /api/knowledge/dedup", h.handleDedup)
}

// TenancyRequest carries the tenancy triple every knowledge operation
// requires.
type TenancyRequest struct {
	Organization string `json:"organization"`
	Division     string `json:"division"`
	Application  string `json:"application"`
}

func (r TenancyRequest) tenancy() tenant.Tenancy {
	return tenant.Tenancy{
		Organization: r.Organization,
		Division:     r.Division,
		Application:  r.Application,
	}
}

// IngestRequest is the request body for POST /api/knowledge.
type IngestRequest struct {
	TenancyRequest
	Documents []ingest.Document `json:"documents"`
}

// handleIngest ingests a batch of documents. Per-document failures do
// not fail the request; they are reported in the returned summary.
func (h *KnowledgeHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "documents is required")
		return
	}

	summary, err := h.ingester.IngestBatch(r.Context(), req.tenancy(), req.Documents)
	if err != nil {
		status, code := errorStatus(err)
		h.logger.Error("batch ingestion failed", "error", err)
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// DeleteRequest is the request body for DELETE /api/knowledge.
type DeleteRequest struct {
	TenancyRequest
	SourceType knowledge.SourceType `json:"source_type"`
	SourceID   string               `json:"source_id"`
}

// handleDelete removes a single record identified by its source.
func (h *KnowledgeHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := h.store.Delete(r.Context(), req.tenancy(), req.SourceType, req.SourceID); err != nil {
		status, code := errorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDedup removes duplicate crawled records for a tenancy.
func (h *KnowledgeHandler) handleDedup(w http.ResponseWriter, r *http.Request) {
	var req TenancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}

	summary, err := h.store.DeduplicateCrawl(r.Context(), req.tenancy())
	if err != nil {
		status, code := errorStatus(err)
		h.logger.Error("crawl deduplication failed", "error", err)
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
