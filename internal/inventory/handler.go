package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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
	r.Get("/movements", h.List)
	r.Post("/movements", h.Record)
	r.Get("/movements/{id}", h.Get)
	r.Delete("/movements/{id}", h.Delete)
	r.Get("/on-hand/{sku}", h.OnHand)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMovementNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
		return
	}
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("inventory handler", slog.Any("error", err))
		httpx.Problem(w, status, title, "")
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

type movementResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	SKU       string `json:"sku"`
	Quantity  string `json:"quantity"`
	UnitCost  string `json:"unit_cost"`
	Total     string `json:"total"`
	JournalID *int64 `json:"journal_id,omitempty"`
}

func toResponse(m Movement) movementResponse {
	return movementResponse{
		ID:        m.ID.String(),
		Kind:      string(m.Kind),
		SKU:       m.SKU,
		Quantity:  m.Quantity.String(),
		UnitCost:  m.UnitCost.StringFixed(2),
		Total:     m.Total.StringFixed(2),
		JournalID: m.JournalID,
	}
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     string `json:"kind" validate:"required,oneof=RECEIPT ISSUE"`
		SKU      string `json:"sku" validate:"required"`
		Quantity string `json:"quantity" validate:"required"`
		UnitCost string `json:"unit_cost" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Quantity", err.Error())
		return
	}
	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Unit Cost", err.Error())
		return
	}
	movement, err := h.service.RecordMovement(r.Context(), MovementInput{
		Kind:      MovementKind(req.Kind),
		SKU:       req.SKU,
		Quantity:  quantity,
		UnitCost:  unitCost,
		CreatedBy: actorID(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(movement))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	movement, err := h.service.GetMovement(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(movement))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListMovements(r.Context(), r.URL.Query().Get("sku"), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toResponse(m))
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
	if err := h.service.DeleteMovement(r.Context(), id, actorID(r), req.Reason); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) OnHand(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	onHand, err := h.service.OnHand(r.Context(), sku)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"sku": sku, "on_hand": onHand.String()})
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
