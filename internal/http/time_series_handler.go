package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/service"

	"go.uber.org/zap"
)

// TimeSeriesHandler serves time-series reads.
type TimeSeriesHandler struct {
	svc service.DataService
	log *zap.Logger
}

func NewTimeSeriesHandler(svc service.DataService, log *zap.Logger) *TimeSeriesHandler {
	return &TimeSeriesHandler{svc: svc, log: log}
}

// Series handles GET /api/v1/time-series/{asset_id}/{data_source_id}
// with optional start_date and end_date query bounds.
func (h *TimeSeriesHandler) Series(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/time-series/")
	assetStr, sourceStr, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(sourceStr, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	assetID, err1 := strconv.Atoi(assetStr)
	sourceID, err2 := strconv.Atoi(sourceStr)
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid series ids"})
		return
	}

	start, err := parseDateParam(r, "start_date")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date, want YYYY-MM-DD"})
		return
	}
	end, err := parseDateParam(r, "end_date")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date, want YYYY-MM-DD"})
		return
	}

	rows, err := h.svc.GetTimeSeries(r.Context(), service.TimeSeriesRequest{
		AssetID:      assetID,
		DataSourceID: sourceID,
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
