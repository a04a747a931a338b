package portfolio

import (
	"sort"
	"time"

	"stocklab/internal/ledger"
	"stocklab/internal/market"
	"stocklab/internal/model"
	"stocklab/internal/orders"

	"github.com/shopspring/decimal"
)

// Service is the read-only reporting facade over the ledger, the registry
// and the trade log. It never mutates any of them; views are point-in-time
// snapshots, not settlement-grade reads.
type Service struct {
	ledger *ledger.Store
	reg    *market.Registry
	trades *orders.TradeLog
}

func NewService(lstore *ledger.Store, reg *market.Registry, trades *orders.TradeLog) *Service {
	return &Service{ledger: lstore, reg: reg, trades: trades}
}

type PositionView struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Quantity          int64           `json:"quantity"`
	AverageCost       decimal.Decimal `json:"averageCost"`
	CurrentPrice      decimal.Decimal `json:"currentPrice"`
	CurrentValue      decimal.Decimal `json:"currentValue"`
	ProfitLoss        decimal.Decimal `json:"profitLoss"`
	ProfitLossPercent decimal.Decimal `json:"profitLossPercent"`
}

type AssetsView struct {
	UserID         string          `json:"userId"`
	CashBalance    decimal.Decimal `json:"cashBalance"`
	PositionsValue decimal.Decimal `json:"positionsValue"`
	TotalAssets    decimal.Decimal `json:"totalAssets"`
}

// PositionsWithMarketValue joins holdings with live prices, ordered by
// symbol.
func (s *Service) PositionsWithMarketValue(userID string) []PositionView {
	positions := s.ledger.Positions(userID)
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	out := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, s.view(p))
	}
	return out
}

func (s *Service) view(p model.Position) PositionView {
	v := PositionView{
		Symbol:      p.Symbol,
		Quantity:    p.Quantity,
		AverageCost: p.AverageCost,
	}
	inst, err := s.reg.Get(p.Symbol)
	if err != nil {
		// Symbol left the catalog between sessions; value it at cost.
		v.CurrentPrice = p.AverageCost
	} else {
		v.Name = inst.Name
		v.CurrentPrice = inst.CurrentPrice
	}
	qty := decimal.NewFromInt(p.Quantity)
	v.CurrentValue = v.CurrentPrice.Mul(qty).Round(2)
	v.ProfitLoss = v.CurrentPrice.Sub(p.AverageCost).Mul(qty).Round(2)
	cost := p.AverageCost.Mul(qty)
	if cost.IsPositive() {
		v.ProfitLossPercent = v.ProfitLoss.DivRound(cost, 6).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return v
}

// TotalAssets is cash plus the market value of all holdings.
func (s *Service) TotalAssets(userID string) AssetsView {
	sum := decimal.Zero
	for _, v := range s.PositionsWithMarketValue(userID) {
		sum = sum.Add(v.CurrentValue)
	}
	cash := s.ledger.GetBalance(userID)
	return AssetsView{
		UserID:         userID,
		CashBalance:    cash,
		PositionsValue: sum,
		TotalAssets:    cash.Add(sum),
	}
}

// TradeHistory returns the user's trades over the last N days, newest
// first.
func (s *Service) TradeHistory(userID string, days int) []model.Trade {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return s.trades.ListByUser(userID, cutoff)
}
