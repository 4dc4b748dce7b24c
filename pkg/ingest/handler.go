// Package ingest exposes the HTTP surface of the segmentation service:
// CSV upload and column analysis, pipeline execution, the business
// registry, and WebSocket progress streaming.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tinyseg/tinyseg/pkg/analytics"
	"github.com/tinyseg/tinyseg/pkg/clean"
	"github.com/tinyseg/tinyseg/pkg/config"
	"github.com/tinyseg/tinyseg/pkg/dataset"
	"github.com/tinyseg/tinyseg/pkg/export"
	"github.com/tinyseg/tinyseg/pkg/httpx"
	"github.com/tinyseg/tinyseg/pkg/schema"
	"github.com/tinyseg/tinyseg/pkg/segment"
	"github.com/tinyseg/tinyseg/pkg/store"
)

// Handler serves the segmentation API.
type Handler struct {
	store  store.Store
	hub    *ProgressHub
	engine *segment.Engine
}

// NewHandler creates a handler backed by the given store. The hub may be
// shared with the server's WebSocket route.
func NewHandler(st store.Store, hub *ProgressHub) *Handler {
	return &Handler{
		store:  st,
		hub:    hub,
		engine: segment.NewEngine(st),
	}
}

// readUpload pulls the CSV out of a multipart form and parses it.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, *dataset.Frame, error) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("missing file upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}

	frame, err := dataset.FromCSV(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	return data, frame, nil
}

// ColumnAnalysis is the response of the column-analysis endpoint.
type ColumnAnalysis struct {
	DetectedColumns []string           `json:"detected_columns"`
	Suggestions     map[string]string  `json:"suggestions"`
	CoreRequired    []string           `json:"core_required_columns"`
	Recommended     []string           `json:"recommended_columns"`
	Optional        []string           `json:"optional_columns"`
	Validation      *schema.Validation `json:"validation,omitempty"`
}

// HandleAnalyzeColumns inspects an uploaded CSV's header and suggests a
// mapping onto the canonical schema, along with the analysis modes the
// suggested mapping would support.
func (h *Handler) HandleAnalyzeColumns(w http.ResponseWriter, r *http.Request) {
	_, frame, err := readUpload(w, r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	suggestions := schema.SuggestMapping(frame.Columns)
	analysis := ColumnAnalysis{
		DetectedColumns: frame.Columns,
		Suggestions:     suggestions,
		CoreRequired:    schema.CoreRequired,
		Recommended:     schema.Recommended,
		Optional:        schema.Optional,
	}
	// Validation of the suggestion is advisory here; an unmappable file is
	// still a successful analysis.
	if v, err := schema.Resolve(suggestions); err == nil {
		analysis.Validation = v
	}

	log.Printf("🔎 Analyzed columns: %d detected, %d mapped", len(frame.Columns), len(suggestions))
	httpx.RespondJSON(w, http.StatusOK, analysis)
}

// SegmentResponse is the response of a successful pipeline run.
type SegmentResponse struct {
	Status       string             `json:"status"`
	JobID        string             `json:"job_id"`
	Business     string             `json:"business_name"`
	AnalysisMode schema.Mode        `json:"analysis_mode"`
	Retrained    bool               `json:"retrained"`
	Customers    []segment.Customer `json:"customers"`
	Analytics    *analytics.Summary `json:"analytics"`
	Cleaning     []clean.StageCount `json:"cleaning_stages"`
}

// HandleSegment runs the full pipeline on an uploaded CSV.
//
// Multipart form fields: file (CSV, required), business_name (required),
// column_mappings (JSON object user column → canonical column, optional —
// auto-detected when absent), retrain ("true"/"false", default true),
// format ("json" default, "csv" streams the segmented customers as a file).
func (h *Handler) HandleSegment(w http.ResponseWriter, r *http.Request) {
	raw, frame, err := readUpload(w, r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	business := strings.TrimSpace(r.FormValue("business_name"))
	if business == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "business_name is required")
		return
	}

	var mapping map[string]string
	if mj := r.FormValue("column_mappings"); mj != "" {
		if err := json.Unmarshal([]byte(mj), &mapping); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid column_mappings: %w", err))
			return
		}
	}

	retrain := true
	if rv := r.FormValue("retrain"); rv != "" {
		retrain = rv == "true" || rv == "1"
	}

	jobID := uuid.NewString()
	result, err := h.runPipeline(r.Context(), jobID, frame, PipelineOptions{
		Business: business,
		Mapping:  mapping,
		Retrain:  retrain,
		TopN:     config.DefaultTopProducts,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var ve *schema.ValidationError
		var ee *clean.EmptyDatasetError
		if errors.As(err, &ve) || errors.As(err, &ee) {
			status = http.StatusBadRequest
		}
		log.Printf("❌ Pipeline failed for %q: %v", business, err)
		httpx.RespondError(w, status, err)
		return
	}

	h.saveBusinessRecord(r, business, raw, result)

	if r.FormValue("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", business+"_segments.csv"))
		if err := export.WriteCustomersCSV(w, result.Customers); err != nil {
			// Headers are already out; all we can do is log.
			log.Printf("⚠️  CSV export aborted: %v", err)
		}
		return
	}

	httpx.RespondJSON(w, http.StatusOK, SegmentResponse{
		Status:       "success",
		JobID:        jobID,
		Business:     business,
		AnalysisMode: result.Validation.Mode,
		Retrained:    result.Retrained,
		Customers:    result.Customers,
		Analytics:    result.Analytics,
		Cleaning:     result.Cleaning,
	})
}

// saveBusinessRecord upserts the business metadata after a successful run.
// Persistence failures are logged, not surfaced: the caller already has
// their segmentation.
func (h *Handler) saveBusinessRecord(r *http.Request, business string, raw []byte, result *PipelineResult) {
	ctx := r.Context()
	now := time.Now().UTC()

	record, err := h.store.GetBusiness(ctx, business)
	if err != nil {
		record = &store.Business{Name: business, CreatedAt: now}
	}

	record.AnalysisMode = string(result.Validation.Mode)
	record.CustomerCount = len(result.Customers)
	record.TransactionCount = result.transactionCount
	record.Silhouette = result.Analytics.ModelPerformance.Silhouette
	record.Inertia = result.Analytics.ModelPerformance.Inertia
	record.NumClusters = result.Analytics.ModelPerformance.NumClusters
	record.DatasetFingerprint = store.Fingerprint(raw)
	record.UpdatedAt = now
	if notes := r.FormValue("notes"); notes != "" {
		record.Notes = notes
	}

	if err := h.store.PutBusiness(ctx, record); err != nil {
		log.Printf("⚠️  Failed to save business record for %q: %v", business, err)
	}
}

// HandleListBusinesses returns every registered business record.
func (h *Handler) HandleListBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.store.ListBusinesses(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"businesses": businesses,
		"count":      len(businesses),
	})
}

// HandleGetBusiness returns one business record.
func (h *Handler) HandleGetBusiness(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	b, err := h.store.GetBusiness(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.RespondErrorString(w, http.StatusNotFound, "business not found: "+name)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, b)
}

// HandleDeleteBusiness removes a business record and its model artifact.
func (h *Handler) HandleDeleteBusiness(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ctx := r.Context()

	if _, err := h.store.GetBusiness(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.RespondErrorString(w, http.StatusNotFound, "business not found: "+name)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	if err := h.store.DeleteModel(ctx, name); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.store.DeleteBusiness(ctx, name); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	log.Printf("🗑️  Deleted business %q and its model artifact", name)
	httpx.RespondJSON(w, http.StatusOK, map[string]string{
		"status":   "deleted",
		"business": name,
	})
}

// HandleStats reports store contents for the health endpoint.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}
