package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/repository"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/service"

	"go.uber.org/zap"
)

// DataSourcesHandler serves the data-source lifecycle endpoints.
type DataSourcesHandler struct {
	svc service.DataService
	log *zap.Logger
}

func NewDataSourcesHandler(svc service.DataService, log *zap.Logger) *DataSourcesHandler {
	return &DataSourcesHandler{svc: svc, log: log}
}

type dataSourceBody struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Provider    string            `json:"provider"`
	Attributes  map[string]string `json:"attributes"`
}

func (b dataSourceBody) payload() repository.DataSourcePayload {
	return repository.DataSourcePayload{
		Name:        b.Name,
		Description: b.Description,
		Provider:    b.Provider,
		Attributes:  b.Attributes,
	}
}

// Collection handles /api/v1/data-sources.
func (h *DataSourcesHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sources, err := h.svc.ListDataSources(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sources)
	case http.MethodPost:
		var body dataSourceBody
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		source, err := h.svc.CreateDataSource(r.Context(), body.payload())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, source)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ByID handles /api/v1/data-sources/{id} and sub-resources, plus the
// provider lookup /api/v1/data-sources/provider/{name}.
func (h *DataSourcesHandler) ByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/data-sources/")
	head, sub, _ := strings.Cut(rest, "/")

	if head == "provider" {
		h.byProvider(w, r, sub)
		return
	}

	id, err := strconv.Atoi(head)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid data source id"})
		return
	}
	switch sub {
	case "":
		h.one(w, r, id)
	case "resurrect":
		h.resurrect(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *DataSourcesHandler) byProvider(w http.ResponseWriter, r *http.Request, provider string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if provider == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing provider"})
		return
	}
	source, err := h.svc.GetDataSourceByProvider(r.Context(), provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func (h *DataSourcesHandler) one(w http.ResponseWriter, r *http.Request, id int) {
	switch r.Method {
	case http.MethodGet:
		source, err := h.svc.GetDataSource(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, source)
	case http.MethodPut:
		var body dataSourceBody
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		source, err := h.svc.UpdateDataSource(r.Context(), id, body.payload())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, source)
	case http.MethodDelete:
		if err := h.svc.DeleteDataSource(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *DataSourcesHandler) resurrect(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body dataSourceBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	source, err := h.svc.ResurrectDataSource(r.Context(), id, body.payload())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}
