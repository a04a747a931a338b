package orders

import (
	"net/http"
	"strings"

	"stocklab/internal/httputil"
	"stocklab/internal/types"

	"github.com/shopspring/decimal"
)

type Handler struct {
	exec *Executor
}

func NewHandler(exec *Executor) *Handler {
	return &Handler{exec: exec}
}

type tradeRequestDTO struct {
	UserID    string `json:"userId"`
	StockCode string `json:"stockCode"`
	TradeType string `json:"tradeType"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
	OrderType string `json:"orderType"`
}

// Trade handles POST /v1/stocks/trade. The response is always 200 with a
// status field in the body; callers branch on that, not on the transport
// status.
func (h *Handler) Trade(w http.ResponseWriter, r *http.Request) {
	var dto tradeRequestDTO
	if err := httputil.ReadJSON(r, &dto); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	dto.UserID = strings.TrimSpace(dto.UserID)
	if dto.UserID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "userId is required"})
		return
	}
	req := TradeRequest{
		UserID:    dto.UserID,
		Symbol:    strings.TrimSpace(dto.StockCode),
		Side:      types.TradeSide(strings.ToUpper(strings.TrimSpace(dto.TradeType))),
		Quantity:  dto.Quantity,
		OrderType: types.OrderTypeMarket,
	}
	if dto.OrderType != "" {
		req.OrderType = types.OrderType(strings.ToUpper(strings.TrimSpace(dto.OrderType)))
	}
	if req.OrderType == types.OrderTypeLimit {
		if dto.Price == "" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "price is required for limit orders"})
			return
		}
		p, err := decimal.NewFromString(dto.Price)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
			return
		}
		req.LimitPrice = &p
	}
	httputil.WriteJSON(w, http.StatusOK, h.exec.Execute(r.Context(), req))
}
