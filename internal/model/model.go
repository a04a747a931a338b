package model

import (
	"time"

	"stocklab/internal/types"

	"github.com/shopspring/decimal"
)

// Instrument is the live quote state for one tradable symbol. Change and
// ChangePercent are always recomputed from CurrentPrice and PreviousClose,
// never stored independently.
type Instrument struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Company       string          `json:"company"`
	Industry      string          `json:"industry"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	PreviousClose decimal.Decimal `json:"previousClose"`
	OpenPrice     decimal.Decimal `json:"openPrice"`
	HighPrice     decimal.Decimal `json:"highPrice"`
	LowPrice      decimal.Decimal `json:"lowPrice"`
	Volume        int64           `json:"volume"`
	MarketCap     decimal.Decimal `json:"marketCap"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Volatility    int             `json:"volatility"`
	IsActive      bool            `json:"isActive"`
	LastUpdated   time.Time       `json:"lastUpdated"`
}

type Account struct {
	UserID      string          `json:"userId"`
	CashBalance decimal.Decimal `json:"cashBalance"`
}

// Position is a user's holding in one instrument. AverageCost is a
// quantity-weighted entry price and is only meaningful while Quantity > 0.
type Position struct {
	UserID      string          `json:"userId"`
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"averageCost"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Trade is an immutable audit record, written once per execution attempt,
// rejections included.
type Trade struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	Symbol          string            `json:"symbol"`
	Side            types.TradeSide   `json:"side"`
	Quantity        int64             `json:"quantity"`
	FillPrice       decimal.Decimal   `json:"fillPrice"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	OrderType       types.OrderType   `json:"orderType"`
	Status          types.TradeStatus `json:"status"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// PricePoint is one sample of an instrument's tick history.
type PricePoint struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}
