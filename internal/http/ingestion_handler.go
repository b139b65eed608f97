package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/service"

	"go.uber.org/zap"
)

// IngestionHandler serves the ingestion session endpoints.
type IngestionHandler struct {
	svc service.IngestionService
	log *zap.Logger
}

func NewIngestionHandler(svc service.IngestionService, log *zap.Logger) *IngestionHandler {
	return &IngestionHandler{svc: svc, log: log}
}

type ingestBody struct {
	AssetID      int    `json:"asset_id"`
	DataSourceID int    `json:"data_source_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	ForceRefresh bool   `json:"force_refresh"`
}

// Ingest handles POST /api/v1/ingest/nasdaq: starts a background
// session and answers 202 with its id.
func (h *IngestionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body ingestBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	start, err := parseDate(body.StartDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date, want YYYY-MM-DD"})
		return
	}
	end, err := parseDate(body.EndDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date, want YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date before start_date"})
		return
	}

	sessionID, err := h.svc.StartSession(r.Context(), service.IngestRequest{
		AssetID:      body.AssetID,
		DataSourceID: body.DataSourceID,
		StartDate:    start,
		EndDate:      end,
		ForceRefresh: body.ForceRefresh,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// Sessions handles /api/v1/ingest/sessions and
// /api/v1/ingest/sessions/{id} (DELETE cancels).
func (h *IngestionHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/ingest/sessions")
	rest = strings.TrimPrefix(rest, "/")

	if rest == "" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"active": h.svc.ActiveSessions()})
		return
	}

	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.svc.CancelSession(rest) {
		writeJSON(w, http.StatusOK, map[string]string{"session_id": rest, "status": "cancelling"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown or finished session"})
}

type extendBody struct {
	AssetID      int    `json:"asset_id"`
	DataSourceID int    `json:"data_source_id"`
	NewStartDate string `json:"new_start_date"`
	NewEndDate   string `json:"new_end_date"`
}

// Extend handles POST /api/v1/ingest/nasdaq/extend: fetches only dates
// outside the existing coverage period.
func (h *IngestionHandler) Extend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body extendBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	var newStart, newEnd *time.Time
	if body.NewStartDate != "" {
		t, err := parseDate(body.NewStartDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid new_start_date, want YYYY-MM-DD"})
			return
		}
		newStart = &t
	}
	if body.NewEndDate != "" {
		t, err := parseDate(body.NewEndDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid new_end_date, want YYYY-MM-DD"})
			return
		}
		newEnd = &t
	}
	if newStart == nil && newEnd == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "need new_start_date or new_end_date"})
		return
	}

	summary, err := h.svc.ExtendCoverage(r.Context(), body.AssetID, body.DataSourceID, newStart, newEnd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Refresh handles POST /api/v1/ingest/nasdaq/refresh: re-ingests the
// covered window, superseding every covered date.
func (h *IngestionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		AssetID      int `json:"asset_id"`
		DataSourceID int `json:"data_source_id"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	summary, err := h.svc.RefreshExisting(r.Context(), body.AssetID, body.DataSourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// EnsureSource handles POST /api/v1/ingest/nasdaq/ensure-source.
func (h *IngestionHandler) EnsureSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Provider string `json:"provider"`
	}
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if body.Provider == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing provider"})
		return
	}
	source, err := h.svc.EnsureDataSource(r.Context(), body.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

// CoverageHandler serves coverage and status reads.
type CoverageHandler struct {
	svc service.CoverageService
	log *zap.Logger
}

func NewCoverageHandler(svc service.CoverageService, log *zap.Logger) *CoverageHandler {
	return &CoverageHandler{svc: svc, log: log}
}

// Status handles GET /api/v1/coverage/status with optional asset_id and
// data_source_id filters.
func (h *CoverageHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var assetFilter, sourceFilter *int
	if s := r.URL.Query().Get("asset_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid asset_id"})
			return
		}
		assetFilter = &id
	}
	if s := r.URL.Query().Get("data_source_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid data_source_id"})
			return
		}
		sourceFilter = &id
	}
	statuses, err := h.svc.IngestionStatus(r.Context(), assetFilter, sourceFilter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// Series handles /api/v1/coverage/{asset_id}/{data_source_id} and its
// /availability sub-resource.
func (h *CoverageHandler) Series(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/coverage/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || len(parts) > 3 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	assetID, err1 := strconv.Atoi(parts[0])
	sourceID, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid series ids"})
		return
	}

	if len(parts) == 3 {
		if parts[2] != "availability" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		av, err := h.svc.Availability(r.Context(), assetID, sourceID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, av)
		return
	}

	period, err := h.svc.Period(r.Context(), assetID, sourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if period == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "series has no coverage"})
		return
	}
	writeJSON(w, http.StatusOK, period)
}
