package portfolio

import (
	"net/http"
	"strconv"

	"stocklab/internal/httputil"
	"stocklab/internal/model"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "userId is required"})
		return
	}
	views := h.svc.PositionsWithMarketValue(userID)
	if views == nil {
		views = []PositionView{}
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "userId is required"})
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid days"})
			return
		}
		days = n
	}
	trades := h.svc.TradeHistory(userID, days)
	if trades == nil {
		trades = []model.Trade{}
	}
	httputil.WriteJSON(w, http.StatusOK, trades)
}

func (h *Handler) Assets(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "userId is required"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.svc.TotalAssets(userID))
}
