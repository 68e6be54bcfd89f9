package journals

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

type lineRequest struct {
	AccountID    int64   `json:"account_id" validate:"required"`
	Debit        string  `json:"debit"`
	Credit       string  `json:"credit"`
	Description  string  `json:"description"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
	ExchangeRate string  `json:"exchange_rate"`
	ProductID    *int64  `json:"product_id"`
	Quantity     *string `json:"quantity"`
}

type postRequest struct {
	Date        string        `json:"date" validate:"required"`
	Description string        `json:"description"`
	Currency    string        `json:"currency" validate:"omitempty,len=3"`
	SourceKind  *string       `json:"source_kind"`
	SourceID    *string       `json:"source_id"`
	Lines       []lineRequest `json:"lines" validate:"required,dive"`
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type lineResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Number      string         `json:"number"`
	Date        string         `json:"date"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	SourceKind  *string        `json:"source_kind,omitempty"`
	SourceID    *string        `json:"source_id,omitempty"`
	PostedAt    *time.Time     `json:"posted_at,omitempty"`
	ReversedBy  *int64         `json:"reversed_by,omitempty"`
	Reverses    *int64         `json:"reverses,omitempty"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

func toEntryResponse(e JournalEntry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		Number:      e.EntryNumber(),
		Date:        e.Date.Format("2006-01-02"),
		Description: e.Description,
		Status:      string(e.Status),
		TotalDebit:  e.TotalDebit.StringFixed(2),
		TotalCredit: e.TotalCredit.StringFixed(2),
		PostedAt:    e.PostedAt,
		ReversedBy:  e.ReversedBy,
		Reverses:    e.Reverses,
	}
	if e.Source != nil {
		kind := string(e.Source.Kind)
		id := e.Source.ID.String()
		resp.SourceKind = &kind
		resp.SourceID = &id
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:          line.ID,
			AccountID:   line.AccountID,
			Debit:       line.Debit.StringFixed(2),
			Credit:      line.Credit.StringFixed(2),
			Description: line.Description,
			Currency:    line.Currency,
		})
	}
	return resp
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status, title := shared.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("journals handler", slog.Any("error", err))
		httpx.Problem(w, status, title, "")
		return
	}
	httpx.Problem(w, status, title, err.Error())
}

// toPostingInput converts the wire request. Amount strings keep decimals
// exact; float JSON numbers would already have lost the cents.
func (h *Handler) toPostingInput(r *http.Request, req postRequest) (PostingInput, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return PostingInput{}, err
	}
	input := PostingInput{
		Date:        date,
		Description: req.Description,
		Currency:    req.Currency,
		CreatedBy:   actorID(r),
	}
	if req.SourceKind != nil && req.SourceID != nil {
		id, err := uuid.Parse(*req.SourceID)
		if err != nil {
			return PostingInput{}, err
		}
		input.Source = &SourceRef{Kind: SourceKind(*req.SourceKind), ID: id}
	}
	for _, line := range req.Lines {
		parsed := LineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Currency:    line.Currency,
			ProductID:   line.ProductID,
		}
		if parsed.Debit, err = parseAmount(line.Debit); err != nil {
			return PostingInput{}, err
		}
		if parsed.Credit, err = parseAmount(line.Credit); err != nil {
			return PostingInput{}, err
		}
		if parsed.ExchangeRate, err = parseAmount(line.ExchangeRate); err != nil {
			return PostingInput{}, err
		}
		if line.Quantity != nil {
			qty, err := decimal.NewFromString(*line.Quantity)
			if err != nil {
				return PostingInput{}, err
			}
			parsed.Quantity = &qty
		}
		input.Lines = append(input.Lines, parsed)
	}
	return input, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func (h *Handler) decodePosting(w http.ResponseWriter, r *http.Request) (PostingInput, bool) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return PostingInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return PostingInput{}, false
	}
	input, err := h.toPostingInput(r, req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return PostingInput{}, false
	}
	return input, true
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodePosting(w, r)
	if !ok {
		return
	}
	entry, err := h.service.Post(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status:     Status(r.URL.Query().Get("status")),
		SourceKind: SourceKind(r.URL.Query().Get("source_kind")),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", err.Error())
			return
		}
		filter.Limit = n
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := actorID(r)
	if actor == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Missing Actor", "X-Actor-ID header required")
		return
	}
	reversal, err := h.service.Reverse(r.Context(), ReverseInput{EntryID: id, ActorID: actor, Reason: req.Reason})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(reversal))
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Archive(r.Context(), id, actorID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "status": string(StatusArchived)})
}

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodePosting(w, r)
	if !ok {
		return
	}
	draft, err := h.service.SaveDraft(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(draft))
}

func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	input, ok := h.decodePosting(w, r)
	if !ok {
		return
	}
	draft, err := h.service.UpdateDraft(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(draft))
}

func (h *Handler) PostDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	entry, err := h.service.PostDraft(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DiscardDraft(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// actorID reads the acting user from the X-Actor-ID header set by the API
// gateway. Zero means unauthenticated; operations that require an actor
// reject it.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
