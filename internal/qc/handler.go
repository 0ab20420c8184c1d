package qc

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stitchtrack/stitchtrack/internal/platform/httpx"
	"github.com/stitchtrack/stitchtrack/internal/stitching"
)

// Handler manages quality control endpoints.
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

// MountRoutes registers QC routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/scan", h.processScan)
	r.Get("/delivery-challans", h.listChallans)
	r.Get("/delivery-challans/pending", h.pendingChallans)
	r.Get("/delivery-challans/{id}/history", h.scanHistory)
	r.Put("/delivery-challans/{id}/status", h.manualStatusUpdate)
	r.Post("/stitch-returns", h.createReturn)
	r.Get("/stitch-returns", h.listReturns)
	r.Get("/stats/summary", h.summary)
}

func (h *Handler) processScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.ProcessScan(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listChallans(w http.ResponseWriter, r *http.Request) {
	var status *stitching.DCStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := stitching.DCStatus(v)
		if !s.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "unknown challan status "+v)
			return
		}
		status = &s
	}
	var unitID *int64
	if v := r.URL.Query().Get("unit_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid unit_id filter")
			return
		}
		unitID = &id
	}

	views, err := h.service.ListChallans(r.Context(), status, unitID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) pendingChallans(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.PendingChallans(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pending)
}

func (h *Handler) scanHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid challan id")
		return
	}

	records, err := h.service.ScanHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) manualStatusUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid challan id")
		return
	}

	var req ManualStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	dc, err := h.service.ManualStatusUpdate(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dc)
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var req CreateReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	ret, err := h.service.RecordStitchReturn(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	req := ListReturnsRequest{}
	if v := r.URL.Query().Get("dc_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid dc_id filter")
			return
		}
		req.DCID = &id
	}
	if v := r.URL.Query().Get("return_type"); v != "" {
		rt := ReturnType(v)
		if !rt.IsValid() {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "unknown return type "+v)
			return
		}
		req.ReturnType = &rt
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		req.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		req.Offset, _ = strconv.Atoi(v)
	}

	returns, err := h.service.ListReturns(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, returns)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stitching.ErrChallanNotFound), errors.Is(err, ErrBundleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrItemNotOnChallan), errors.Is(err, ErrReturnExceedsSent),
		errors.Is(err, ErrReasonRequired), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidScanType), errors.Is(err, ErrInvalidReturnType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("qc request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
