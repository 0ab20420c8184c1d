package cutting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stitchtrack/stitchtrack/internal/platform/httpx"
)

// Handler manages cutting endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers cutting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/programs", h.createProgram)
	r.Get("/lots", h.listLots)
	r.Get("/lots/{id}", h.getLot)
	r.Get("/lots/{id}/bundles", h.getLotBundles)
	r.Get("/bundles", h.searchBundles)
	r.Get("/bundles/{id}", h.getBundle)
	r.Post("/stickers", h.stickerData)
	r.Get("/stats", h.stats)
}

func (h *Handler) createProgram(w http.ResponseWriter, r *http.Request) {
	var req CreateProgramRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.CreateProgram(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	req := ListLotsRequest{}
	if v := r.URL.Query().Get("limit"); v != "" {
		req.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		req.Offset, _ = strconv.Atoi(v)
	}

	lots, err := h.service.ListLots(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lots)
}

func (h *Handler) getLot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid lot id")
		return
	}

	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) getLotBundles(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid lot id")
		return
	}

	bundles, err := h.service.GetLotBundles(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bundles)
}

func (h *Handler) searchBundles(w http.ResponseWriter, r *http.Request) {
	req := SearchBundlesRequest{}
	if v := r.URL.Query().Get("lot_number"); v != "" {
		req.LotNumber = &v
	}
	if v := r.URL.Query().Get("bundle_number"); v != "" {
		req.BundleNumber = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := BundleStatus(v)
		if !status.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "unknown bundle status "+v)
			return
		}
		req.Status = &status
	}

	bundles, err := h.service.SearchBundles(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bundles)
}

func (h *Handler) getBundle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid bundle id")
		return
	}

	bundle, err := h.service.GetBundle(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bundle)
}

func (h *Handler) stickerData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BundleIDs []int64 `json:"bundle_ids" validate:"required,min=1"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	stickers, err := h.service.StickerData(r.Context(), req.BundleIDs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stickers)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLotNotFound), errors.Is(err, ErrBundleNotFound),
		errors.Is(err, ErrStyleNotFound), errors.Is(err, ErrColorNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoSizeRatios), errors.Is(err, ErrNoPanelTypes),
		errors.Is(err, ErrInvalidRatio), errors.Is(err, ErrInvalidLayCount),
		errors.Is(err, ErrInvalidPanel):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("cutting request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
