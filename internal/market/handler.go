package market

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stocklab/internal/httputil"
	"stocklab/internal/model"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	reg  *Registry
	hist *History
}

func NewHandler(reg *Registry, hist *History) *Handler {
	return &Handler{reg: reg, hist: hist}
}

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.reg.ListActive())
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "keyword is required"})
		return
	}
	out := h.reg.Search(keyword)
	if out == nil {
		out = []model.Instrument{}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Top(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.reg.TopMovers(topMoversCount))
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	inst, err := h.reg.Get(symbol)
	if err != nil {
		if errors.Is(err, ErrUnknownInstrument) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "unknown stock code"})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inst)
}

func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if _, err := h.reg.Get(symbol); err != nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "unknown stock code"})
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
	points := h.hist.Since(symbol, time.Now().UTC().AddDate(0, 0, -days))
	httputil.WriteJSON(w, http.StatusOK, points)
}
