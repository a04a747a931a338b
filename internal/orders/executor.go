package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stocklab/internal/bus"
	"stocklab/internal/ledger"
	"stocklab/internal/market"
	"stocklab/internal/model"
	"stocklab/internal/types"

	"github.com/shopspring/decimal"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type TradeRequest struct {
	UserID     string
	Symbol     string
	Side       types.TradeSide
	Quantity   int64
	OrderType  types.OrderType
	LimitPrice *decimal.Decimal
}

type TradeResult struct {
	Status      string          `json:"status"`
	Message     string          `json:"message"`
	TradeID     string          `json:"tradeId,omitempty"`
	Symbol      string          `json:"stockCode,omitempty"`
	Name        string          `json:"stockName,omitempty"`
	Side        types.TradeSide `json:"tradeType,omitempty"`
	Quantity    int64           `json:"quantity,omitempty"`
	FillPrice   decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Timestamp   time.Time       `json:"tradeTime"`
}

// Journal persists trade attempts and, for settlements, the resulting
// account and position snapshots. A settlement journal failure aborts the
// in-memory commit.
type Journal interface {
	RecordTrade(ctx context.Context, trade model.Trade, acct *model.Account, pos *model.Position) error
}

// Executor validates, prices and settles orders. Every order moves through
// received -> validated -> priced -> settled, or drops to rejected at any
// step; both outcomes leave a trade record.
type Executor struct {
	reg     *market.Registry
	ledger  *ledger.Store
	trades  *TradeLog
	bus     *bus.Bus
	journal Journal
	timeout time.Duration
}

func NewExecutor(reg *market.Registry, lstore *ledger.Store, trades *TradeLog, b *bus.Bus, journal Journal, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Executor{reg: reg, ledger: lstore, trades: trades, bus: b, journal: journal, timeout: timeout}
}

// Execute runs one order to completion. It never returns a raw error:
// every failure becomes a FAILED result with a rejected audit record.
func (e *Executor) Execute(ctx context.Context, req TradeRequest) TradeResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	inst, err := e.validate(req)
	if err != nil {
		return e.reject(ctx, req, inst, decimal.Zero, err)
	}

	fillPrice, err := e.price(req, inst)
	if err != nil {
		return e.reject(ctx, req, inst, decimal.Zero, err)
	}

	trade, err := e.settle(ctx, req, inst, fillPrice)
	if err != nil {
		return e.reject(ctx, req, inst, fillPrice, err)
	}

	// Fill volume is per-symbol state; by now the price is captured and the
	// user lock released, so no two entity locks are ever held together.
	if _, err := e.reg.AddVolume(req.Symbol, req.Quantity); err != nil {
		log.Printf("[OrderExecutor] volume update %s: %v", req.Symbol, err)
	}

	e.trades.Append(trade)
	e.bus.Publish(bus.Event{
		Topic: bus.TopicTrades(req.UserID),
		Type:  bus.EventTypeTrade,
		Data:  trade,
	})
	return TradeResult{
		Status:      StatusSuccess,
		Message:     "trade completed",
		TradeID:     trade.ID,
		Symbol:      trade.Symbol,
		Name:        inst.Name,
		Side:        trade.Side,
		Quantity:    trade.Quantity,
		FillPrice:   trade.FillPrice,
		TotalAmount: trade.TotalAmount,
		Timestamp:   trade.Timestamp,
	}
}

func (e *Executor) validate(req TradeRequest) (model.Instrument, error) {
	if req.UserID == "" {
		return model.Instrument{}, errors.New("missing user id")
	}
	if req.Quantity <= 0 {
		return model.Instrument{}, ErrInvalidQuantity
	}
	if !req.Side.Valid() {
		return model.Instrument{}, ErrInvalidSide
	}
	if !req.OrderType.Valid() {
		return model.Instrument{}, ErrInvalidType
	}
	if req.OrderType == types.OrderTypeLimit && (req.LimitPrice == nil || req.LimitPrice.LessThanOrEqual(decimal.Zero)) {
		return model.Instrument{}, ErrInvalidLimit
	}
	inst, err := e.reg.Get(req.Symbol)
	if err != nil {
		return model.Instrument{}, err
	}
	if !inst.IsActive {
		return inst, market.ErrInstrumentInactive
	}
	return inst, nil
}

// price resolves the fill price at the instant of execution. Limit orders
// are immediate-or-reject: there is no resting book, so an unmet limit
// rejects instead of queueing.
func (e *Executor) price(req TradeRequest, inst model.Instrument) (decimal.Decimal, error) {
	current, err := e.reg.Get(inst.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if req.OrderType == types.OrderTypeLimit {
		limit := *req.LimitPrice
		if req.Side == types.TradeSideBuy && current.CurrentPrice.GreaterThan(limit) {
			return decimal.Zero, ErrLimitNotMet
		}
		if req.Side == types.TradeSideSell && current.CurrentPrice.LessThan(limit) {
			return decimal.Zero, ErrLimitNotMet
		}
	}
	return current.CurrentPrice, nil
}

// settle applies the ledger pair (debit+add or reduce+credit) and the
// journal write as one all-or-nothing unit under the user's lock.
func (e *Executor) settle(ctx context.Context, req TradeRequest, inst model.Instrument, fillPrice decimal.Decimal) (model.Trade, error) {
	total := fillPrice.Mul(decimal.NewFromInt(req.Quantity)).Round(2)
	trade := model.Trade{
		ID:          NewTradeID(),
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Quantity:    req.Quantity,
		FillPrice:   fillPrice,
		TotalAmount: total,
		OrderType:   req.OrderType,
		Status:      types.TradeStatusCompleted,
		Timestamp:   time.Now().UTC(),
	}
	err := e.ledger.WithUser(ctx, req.UserID, func(tx *ledger.Txn) error {
		var pos model.Position
		var err error
		switch req.Side {
		case types.TradeSideBuy:
			if err = tx.Debit(total); err != nil {
				return err
			}
			if pos, err = tx.AdjustPosition(req.Symbol, req.Quantity, fillPrice, req.Side); err != nil {
				return err
			}
		case types.TradeSideSell:
			if pos, err = tx.AdjustPosition(req.Symbol, req.Quantity, fillPrice, req.Side); err != nil {
				return err
			}
			if err = tx.Credit(total); err != nil {
				return err
			}
		}
		if e.journal != nil {
			acct := model.Account{UserID: req.UserID, CashBalance: tx.Balance()}
			if err := e.journal.RecordTrade(ctx, trade, &acct, &pos); err != nil {
				return fmt.Errorf("%w: %v", ErrStore, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Trade{}, err
	}
	return trade, nil
}

// reject records the failed attempt and translates the cause into a
// caller-facing message. Raw errors never cross the API boundary.
func (e *Executor) reject(ctx context.Context, req TradeRequest, inst model.Instrument, fillPrice decimal.Decimal, cause error) TradeResult {
	trade := model.Trade{
		ID:              NewTradeID(),
		UserID:          req.UserID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Quantity:        req.Quantity,
		FillPrice:       fillPrice,
		TotalAmount:     decimal.Zero,
		OrderType:       req.OrderType,
		Status:          types.TradeStatusRejected,
		RejectionReason: rejectionMessage(cause),
		Timestamp:       time.Now().UTC(),
	}
	e.trades.Append(trade)
	if e.journal != nil {
		// A rejection has no ledger effect to protect; persistence here is
		// best effort.
		if err := e.journal.RecordTrade(ctx, trade, nil, nil); err != nil {
			log.Printf("[OrderExecutor] journal rejection %s: %v", trade.ID, err)
		}
	}
	if !errors.Is(cause, ErrStore) {
		log.Printf("[OrderExecutor] rejected %s %s %s x%d: %v", req.UserID, req.Side, req.Symbol, req.Quantity, cause)
	} else {
		log.Printf("[OrderExecutor] store failure for %s: %v", req.UserID, cause)
	}
	return TradeResult{
		Status:    StatusFailed,
		Message:   rejectionMessage(cause),
		TradeID:   trade.ID,
		Symbol:    req.Symbol,
		Name:      inst.Name,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Timestamp: trade.Timestamp,
	}
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient funds"
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "insufficient shares"
	case errors.Is(err, ledger.ErrLockTimeout):
		return "order timed out, no changes applied"
	case errors.Is(err, market.ErrUnknownInstrument):
		return "unknown stock code"
	case errors.Is(err, market.ErrInstrumentInactive):
		return "trading halted for this stock"
	case errors.Is(err, ErrLimitNotMet):
		return "limit price not met"
	case errors.Is(err, ErrStore):
		return "trade could not be recorded, no changes applied"
	case err != nil:
		return err.Error()
	default:
		return "rejected"
	}
}
