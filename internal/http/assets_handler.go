package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/repository"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/service"

	"go.uber.org/zap"
)

// AssetsHandler serves the asset lifecycle endpoints.
type AssetsHandler struct {
	svc      service.DataService
	coverage service.CoverageService
	log      *zap.Logger
}

func NewAssetsHandler(svc service.DataService, coverage service.CoverageService, log *zap.Logger) *AssetsHandler {
	return &AssetsHandler{svc: svc, coverage: coverage, log: log}
}

type assetBody struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Attributes  map[string]string `json:"attributes"`
}

func (b assetBody) payload() repository.AssetPayload {
	return repository.AssetPayload{Name: b.Name, Description: b.Description, Attributes: b.Attributes}
}

// Collection handles /api/v1/assets.
func (h *AssetsHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		assets, err := h.svc.ListAssets(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assets)
	case http.MethodPost:
		var body assetBody
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		asset, err := h.svc.CreateAsset(r.Context(), body.payload())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, asset)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ByID handles /api/v1/assets/{id} and its sub-resources.
func (h *AssetsHandler) ByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/assets/")
	idStr, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid asset id"})
		return
	}

	switch sub {
	case "":
		h.one(w, r, id)
	case "resurrect":
		h.resurrect(w, r, id)
	case "data-sources":
		h.compatibleSources(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AssetsHandler) one(w http.ResponseWriter, r *http.Request, id int) {
	switch r.Method {
	case http.MethodGet:
		var (
			asset *domain.Asset
			err   error
		)
		if r.URL.Query().Get("include_deleted") == "true" {
			asset, err = h.svc.GetAssetIncludingDeleted(r.Context(), id)
		} else {
			asset, err = h.svc.GetAsset(r.Context(), id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, asset)
	case http.MethodPut:
		var body assetBody
		if err := readBodyJSON(r, 1<<20, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		asset, err := h.svc.UpdateAsset(r.Context(), id, body.payload())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, asset)
	case http.MethodDelete:
		if err := h.svc.DeleteAsset(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *AssetsHandler) resurrect(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body assetBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	asset, err := h.svc.ResurrectAsset(r.Context(), id, body.payload())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetsHandler) compatibleSources(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sources, err := h.coverage.CompatibleDataSources(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sources)
}
