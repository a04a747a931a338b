package types

type TradeSide string

type OrderType string

type TradeStatus string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	TradeStatusCompleted TradeStatus = "COMPLETED"
	TradeStatusRejected  TradeStatus = "REJECTED"
)

func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}
