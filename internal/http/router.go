// Package httpapi is the HTTP surface of the service.
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router wraps the standard http.ServeMux; route shapes stay simple
// enough that a third-party router buys nothing.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler supports the http.Handler interface (promhttp etc).
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterAssetRoutes registers the asset lifecycle endpoints.
func (r *Router) RegisterAssetRoutes(h *AssetsHandler) {
	r.Handle("/api/v1/assets", h.Collection)
	r.Handle("/api/v1/assets/", h.ByID)
}

// RegisterDataSourceRoutes registers the data-source lifecycle endpoints.
func (r *Router) RegisterDataSourceRoutes(h *DataSourcesHandler) {
	r.Handle("/api/v1/data-sources", h.Collection)
	r.Handle("/api/v1/data-sources/", h.ByID)
}

// RegisterTimeSeriesRoutes registers time-series reads.
func (r *Router) RegisterTimeSeriesRoutes(h *TimeSeriesHandler) {
	r.Handle("/api/v1/time-series/", h.Series)
}

// RegisterIngestionRoutes registers ingestion sessions and coverage reads.
func (r *Router) RegisterIngestionRoutes(ing *IngestionHandler, cov *CoverageHandler) {
	r.Handle("/api/v1/ingest/nasdaq", ing.Ingest)
	r.Handle("/api/v1/ingest/nasdaq/extend", ing.Extend)
	r.Handle("/api/v1/ingest/nasdaq/refresh", ing.Refresh)
	r.Handle("/api/v1/ingest/nasdaq/ensure-source", ing.EnsureSource)
	r.Handle("/api/v1/ingest/sessions", ing.Sessions)
	r.Handle("/api/v1/ingest/sessions/", ing.Sessions)

	r.Handle("/api/v1/coverage/status", cov.Status)
	r.Handle("/api/v1/coverage/", cov.Series)
}

// RegisterOpsRoutes registers health and metrics.
func (r *Router) RegisterOpsRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.HandleHandler("/metrics", promhttp.Handler())
}
