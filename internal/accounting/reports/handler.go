package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tree", h.Tree)
	r.Get("/dashboard", h.Dashboard)
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/trial-balance.csv", h.TrialBalanceCSV)
}

type treeNodeResponse struct {
	ID       int64              `json:"id"`
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	Category string             `json:"category"`
	IsGroup  bool               `json:"is_group"`
	Balance  string             `json:"balance"`
	Children []treeNodeResponse `json:"children,omitempty"`
}

func toTreeResponse(nodes []*Node) []treeNodeResponse {
	out := make([]treeNodeResponse, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, treeNodeResponse{
			ID:       node.Account.ID,
			Code:     node.Account.Code,
			Name:     node.Account.Name,
			Category: string(node.Account.Category),
			IsGroup:  node.Account.IsGroup,
			Balance:  node.Balance.StringFixed(2),
			Children: toTreeResponse(node.Children),
		})
	}
	return out
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.service.Tree(r.Context())
	if err != nil {
		h.logger.Error("reports tree", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toTreeResponse(roots))
}

type subTotalResponse struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type dashboardResponse struct {
	TotalAssets      string             `json:"total_assets"`
	TotalLiabilities string             `json:"total_liabilities"`
	TotalEquity      string             `json:"total_equity"`
	TotalRevenue     string             `json:"total_revenue"`
	TotalExpenses    string             `json:"total_expenses"`
	NetIncome        string             `json:"net_income"`
	BalanceResidual  string             `json:"balance_residual"`
	BalanceCheck     bool               `json:"balance_check"`
	SubTotals        []subTotalResponse `json:"sub_totals"`
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("reports dashboard", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	resp := dashboardResponse{
		TotalAssets:      d.TotalAssets.StringFixed(2),
		TotalLiabilities: d.TotalLiabilities.StringFixed(2),
		TotalEquity:      d.TotalEquity.StringFixed(2),
		TotalRevenue:     d.TotalRevenue.StringFixed(2),
		TotalExpenses:    d.TotalExpenses.StringFixed(2),
		NetIncome:        d.NetIncome.StringFixed(2),
		BalanceResidual:  d.BalanceResidual.StringFixed(2),
		BalanceCheck:     d.BalanceCheck,
	}
	for _, st := range d.SubTotals {
		resp.SubTotals = append(resp.SubTotals, subTotalResponse{
			Code:    st.Code,
			Name:    st.Name,
			Balance: st.Balance.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from", time.Time{})
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	to, err := queryDate(r, "to", time.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), from, to)
	if err != nil {
		h.logger.Error("reports trial balance", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) TrialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from", time.Time{})
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	to, err := queryDate(r, "to", time.Now())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), from, to)
	if err != nil {
		h.logger.Error("reports trial balance csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
	if err := WriteTrialBalanceCSV(w, tb); err != nil {
		h.logger.Error("write trial balance csv", slog.Any("error", err))
	}
}

func queryDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}
