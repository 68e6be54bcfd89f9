package purchasing

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
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
}

type createRequest struct {
	SupplierName string `json:"supplier_name" validate:"required"`
	Date         string `json:"date"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	Total        string `json:"total" validate:"required"`
	IsStock      bool   `json:"is_stock"`
}

type invoiceResponse struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	SupplierName string `json:"supplier_name"`
	Date         string `json:"date"`
	Currency     string `json:"currency"`
	Total        string `json:"total"`
	IsStock      bool   `json:"is_stock"`
	JournalID    *int64 `json:"journal_id,omitempty"`
}

func toResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:           inv.ID.String(),
		Number:       inv.Number,
		SupplierName: inv.SupplierName,
		Date:         inv.Date.Format("2006-01-02"),
		Currency:     inv.Currency,
		Total:        inv.Total.StringFixed(2),
		IsStock:      inv.IsStock,
		JournalID:    inv.JournalID,
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if err == ErrInvoiceNotFound {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("purchasing handler", slog.Any("error", err))
		httpx.Problem(w, status, title, "")
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	total, err := decimal.NewFromString(req.Total)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Total", err.Error())
		return
	}
	input := CreateInvoiceInput{
		SupplierName: req.SupplierName,
		Currency:     req.Currency,
		Total:        total,
		IsStock:      req.IsStock,
		CreatedBy:    actorID(r),
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
			return
		}
		input.Date = date
	}
	invoice, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(invoice))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(invoice))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListInvoices(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toResponse(inv))
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
	if err := h.service.DeleteInvoice(r.Context(), id, actorID(r), req.Reason); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
