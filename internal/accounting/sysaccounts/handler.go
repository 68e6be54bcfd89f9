package sysaccounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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
	r.Get("/{key}", h.Resolve)
	r.Put("/{key}", h.Assign)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("sysaccounts handler", slog.Any("error", err))
		httpx.Problem(w, status, title, "")
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

type mappingResponse struct {
	Key       string `json:"key"`
	AccountID int64  `json:"account_id"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]mappingResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, mappingResponse{Key: entry.Key, AccountID: entry.AccountID})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	accountID, err := h.service.Resolve(r.Context(), key)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mappingResponse{Key: key, AccountID: accountID})
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		AccountID int64 `json:"account_id" validate:"required,gt=0"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Assign(r.Context(), key, req.AccountID); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mappingResponse{Key: key, AccountID: req.AccountID})
}
