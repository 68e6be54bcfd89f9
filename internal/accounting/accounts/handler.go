package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
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

type createRequest struct {
	Name        string  `json:"name" validate:"required"`
	ParentID    *int64  `json:"parent_id"`
	Category    *string `json:"category" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	CashFlowTag *string `json:"cash_flow_tag" validate:"omitempty,oneof=OPERATING INVESTING FINANCING"`
	IsGroup     bool    `json:"is_group"`
	Description string  `json:"description"`
}

type updateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	CashFlowTag *string `json:"cash_flow_tag" validate:"omitempty,oneof=OPERATING INVESTING FINANCING"`
	Code        *string `json:"code"`
	ParentID    *int64  `json:"parent_id"`
	TypeID      *int64  `json:"type_id"`
}

type accountResponse struct {
	ID             int64   `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category"`
	ParentID       *int64  `json:"parent_id,omitempty"`
	Level          int     `json:"level"`
	IsGroup        bool    `json:"is_group"`
	IsActive       bool    `json:"is_active"`
	Currency       string  `json:"currency"`
	CurrentBalance string  `json:"current_balance"`
	CashFlowTag    *string `json:"cash_flow_tag,omitempty"`
}

func toResponse(a Account) accountResponse {
	resp := accountResponse{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		Description:    a.Description,
		Category:       string(a.Category),
		ParentID:       a.ParentID,
		Level:          a.Level,
		IsGroup:        a.IsGroup,
		IsActive:       a.IsActive,
		Currency:       a.Currency,
		CurrentBalance: a.CurrentBalance.StringFixed(2),
	}
	if a.CashFlowTag != nil {
		tag := string(*a.CashFlowTag)
		resp.CashFlowTag = &tag
	}
	return resp
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("accounts handler", slog.Any("error", err))
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
	input := CreateInput{
		Name:        req.Name,
		ParentID:    req.ParentID,
		Currency:    req.Currency,
		IsGroup:     req.IsGroup,
		Description: req.Description,
	}
	if req.Category != nil {
		c := types.Category(*req.Category)
		input.Category = &c
	}
	if req.CashFlowTag != nil {
		tag := CashFlowTag(*req.CashFlowTag)
		input.CashFlowTag = &tag
	}
	account, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(account))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Code:        req.Code,
		ParentID:    req.ParentID,
		TypeID:      req.TypeID,
	}
	if req.CashFlowTag != nil {
		tag := CashFlowTag(*req.CashFlowTag)
		input.CashFlowTag = &tag
	}
	account, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(account))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.service.Deactivate(r.Context(), id, req.Active); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "active": req.Active})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
