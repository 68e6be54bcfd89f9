package payroll

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
	r.Post("/", h.Pay)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if err == ErrSlipNotFound {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("payroll handler", slog.Any("error", err))
		httpx.Problem(w, status, title, "")
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

type slipResponse struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	EmployeeName string `json:"employee_name"`
	Period       string `json:"period"`
	Date         string `json:"date"`
	Currency     string `json:"currency"`
	Gross        string `json:"gross"`
	TaxWithheld  string `json:"tax_withheld"`
	Net          string `json:"net"`
	JournalID    *int64 `json:"journal_id,omitempty"`
}

func toResponse(s Slip) slipResponse {
	return slipResponse{
		ID:           s.ID.String(),
		Number:       s.Number,
		EmployeeName: s.EmployeeName,
		Period:       s.Period,
		Date:         s.Date.Format("2006-01-02"),
		Currency:     s.Currency,
		Gross:        s.Gross.StringFixed(2),
		TaxWithheld:  s.TaxWithheld.StringFixed(2),
		Net:          s.Net.StringFixed(2),
		JournalID:    s.JournalID,
	}
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeName string `json:"employee_name" validate:"required"`
		Period       string `json:"period" validate:"required"`
		Date         string `json:"date"`
		Currency     string `json:"currency" validate:"omitempty,len=3"`
		Gross        string `json:"gross" validate:"required"`
		TaxWithheld  string `json:"tax_withheld"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	gross, err := decimal.NewFromString(req.Gross)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
		return
	}
	input := PaySlipInput{
		EmployeeName: req.EmployeeName,
		Period:       req.Period,
		Currency:     req.Currency,
		Gross:        gross,
		CreatedBy:    actorID(r),
	}
	if req.TaxWithheld != "" {
		if input.TaxWithheld, err = decimal.NewFromString(req.TaxWithheld); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
			return
		}
	}
	if req.Date != "" {
		if input.Date, err = time.Parse("2006-01-02", req.Date); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
			return
		}
	}
	slip, err := h.service.PaySlip(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(slip))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	slip, err := h.service.GetSlip(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(slip))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListSlips(r.Context(), r.URL.Query().Get("period"), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]slipResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.DeleteSlip(r.Context(), id, actorID(r), req.Reason); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
