package treasury

import (
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
	r.Post("/cards", h.IssueCard)
	r.Get("/cards/{id}", h.GetCard)
	r.Get("/movements", h.ListMovements)
	r.Post("/movements", h.RecordMovement)
	r.Delete("/movements/{id}", h.DeleteMovement)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch err {
	case ErrCardNotFound, ErrMovementNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	case ErrInsufficientBalance:
		httpx.Problem(w, http.StatusConflict, "Insufficient Balance", err.Error())
		return
	}
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("treasury handler", slog.Any("error", err))
		httpx.Problem(w, status, title, "")
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

type cardResponse struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Holder  string `json:"holder"`
	Balance string `json:"balance"`
}

func toCardResponse(card Card) cardResponse {
	return cardResponse{
		ID:      card.ID.String(),
		Number:  card.Number,
		Holder:  card.Holder,
		Balance: card.Balance.StringFixed(2),
	}
}

func (h *Handler) IssueCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Number  string `json:"number" validate:"required"`
		Holder  string `json:"holder"`
		Opening string `json:"opening_balance"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	opening := decimal.Zero
	if req.Opening != "" {
		var err error
		if opening, err = decimal.NewFromString(req.Opening); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
			return
		}
	}
	card, err := h.service.IssueCard(r.Context(), req.Number, req.Holder, opening)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCardResponse(card))
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	card, err := h.service.GetCard(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCardResponse(card))
}

type movementResponse struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Amount    string  `json:"amount"`
	Currency  string  `json:"currency"`
	CardID    *string `json:"card_id,omitempty"`
	Memo      string  `json:"memo,omitempty"`
	JournalID *int64  `json:"journal_id,omitempty"`
}

func toMovementResponse(m Movement) movementResponse {
	resp := movementResponse{
		ID:        m.ID.String(),
		Kind:      string(m.Kind),
		Amount:    m.Amount.StringFixed(2),
		Currency:  m.Currency,
		Memo:      m.Memo,
		JournalID: m.JournalID,
	}
	if m.CardID != nil {
		id := m.CardID.String()
		resp.CardID = &id
	}
	return resp
}

func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     string  `json:"kind" validate:"required,oneof=DEPOSIT WITHDRAWAL CARD_PAYMENT"`
		Amount   string  `json:"amount" validate:"required"`
		Currency string  `json:"currency" validate:"omitempty,len=3"`
		CardID   *string `json:"card_id"`
		Memo     string  `json:"memo"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
		return
	}
	input := MovementInput{
		Kind:      MovementKind(req.Kind),
		Amount:    amount,
		Currency:  req.Currency,
		Memo:      req.Memo,
		CreatedBy: actorID(r),
	}
	if req.CardID != nil {
		cardID, err := uuid.Parse(*req.CardID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Card ID", err.Error())
			return
		}
		input.CardID = &cardID
	}
	movement, err := h.service.RecordMovement(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListMovements(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
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

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
