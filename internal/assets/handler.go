package assets

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Register)
	r.Get("/{id}", h.Get)
	r.Post("/depreciation-runs", h.RunDepreciation)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if err == ErrAssetNotFound {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("assets handler", slog.Any("error", err))
		httpx.Problem(w, status, title, "")
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

type assetResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Cost             string `json:"cost"`
	SalvageValue     string `json:"salvage_value"`
	UsefulLifeMonths int    `json:"useful_life_months"`
	AcquiredAt       string `json:"acquired_at"`
	Accumulated      string `json:"accumulated_depreciation"`
	MonthlyCharge    string `json:"monthly_charge"`
}

func toResponse(a Asset) assetResponse {
	return assetResponse{
		ID:               a.ID.String(),
		Name:             a.Name,
		Cost:             a.Cost.StringFixed(2),
		SalvageValue:     a.SalvageValue.StringFixed(2),
		UsefulLifeMonths: a.UsefulLifeMonths,
		AcquiredAt:       a.AcquiredAt.Format("2006-01-02"),
		Accumulated:      a.Accumulated.StringFixed(2),
		MonthlyCharge:    a.MonthlyCharge().StringFixed(2),
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name" validate:"required"`
		Cost             string `json:"cost" validate:"required"`
		SalvageValue     string `json:"salvage_value"`
		UsefulLifeMonths int    `json:"useful_life_months" validate:"required,gt=0"`
		AcquiredAt       string `json:"acquired_at"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Cost", err.Error())
		return
	}
	input := RegisterInput{
		Name:             req.Name,
		Cost:             cost,
		UsefulLifeMonths: req.UsefulLifeMonths,
		CreatedBy:        actorID(r),
	}
	if req.SalvageValue != "" {
		if input.SalvageValue, err = decimal.NewFromString(req.SalvageValue); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Salvage Value", err.Error())
			return
		}
	}
	if req.AcquiredAt != "" {
		if input.AcquiredAt, err = time.Parse("2006-01-02", req.AcquiredAt); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
			return
		}
	}
	asset, err := h.service.Register(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(asset))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(asset))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListActive(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]assetResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) RunDepreciation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Period string `json:"period" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	summary, err := h.service.RunDepreciation(r.Context(), req.Period, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"period":  summary.Period,
		"charged": summary.Charged,
		"skipped": summary.Skipped,
		"total":   summary.Total.StringFixed(2),
	})
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
