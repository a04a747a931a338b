package httpserver

import (
	"net/http"

	"stocklab/internal/market"
	"stocklab/internal/orders"
	"stocklab/internal/portfolio"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	MarketHandler    *market.Handler
	OrderHandler     *orders.Handler
	PortfolioHandler *portfolio.Handler
	WSHandler        http.Handler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", d.WSHandler.ServeHTTP)
		r.Route("/stocks", func(r chi.Router) {
			r.Get("/active", d.MarketHandler.Active)
			r.Get("/search", d.MarketHandler.Search)
			r.Get("/top", d.MarketHandler.Top)
			r.Post("/trade", d.OrderHandler.Trade)
			r.Get("/positions/{userId}", d.PortfolioHandler.Positions)
			r.Get("/history/{userId}", d.PortfolioHandler.History)
			r.Get("/assets/{userId}", d.PortfolioHandler.Assets)
			r.Get("/{symbol}", d.MarketHandler.Quote)
			r.Get("/{symbol}/history", d.MarketHandler.PriceHistory)
		})
	})
	return r
}
