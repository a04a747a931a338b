package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stocklab/internal/bus"
	"stocklab/internal/ledger"
	"stocklab/internal/market"
	"stocklab/internal/model"
	"stocklab/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	exec   *Executor
	reg    *market.Registry
	ledger *ledger.Store
	log    *TradeLog
	bus    *bus.Bus
}

func newFixture(t *testing.T, opening string, journal Journal) *fixture {
	t.Helper()
	reg := market.NewRegistry([]market.Seed{
		{Symbol: "AAA", Name: "Alpha", Company: "Alpha Co.", Industry: "Test", Price: dec("10.00"), Volatility: 5, Shares: 1000},
		{Symbol: "BBB", Name: "Beta", Company: "Beta Co.", Industry: "Test", Price: dec("50.00"), Volatility: 5, Shares: 1000},
	})
	lstore := ledger.NewStore(dec(opening))
	tradeLog := NewTradeLog()
	b := bus.NewBus()
	return &fixture{
		exec:   NewExecutor(reg, lstore, tradeLog, b, journal, 2*time.Second),
		reg:    reg,
		ledger: lstore,
		log:    tradeLog,
		bus:    b,
	}
}

func marketOrder(user, symbol string, side types.TradeSide, qty int64) TradeRequest {
	return TradeRequest{UserID: user, Symbol: symbol, Side: side, Quantity: qty, OrderType: types.OrderTypeMarket}
}

func TestMarketBuyThenOversell(t *testing.T) {
	f := newFixture(t, "1000", nil)
	ctx := context.Background()

	res := f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideBuy, 50))
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.True(t, res.FillPrice.Equal(dec("10.00")))
	assert.True(t, res.TotalAmount.Equal(dec("500.00")))
	assert.True(t, f.ledger.GetBalance("u1").Equal(dec("500")))
	pos := f.ledger.GetPosition("u1", "AAA")
	assert.EqualValues(t, 50, pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(dec("10.00")))

	res = f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideSell, 60))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "insufficient shares", res.Message)
	assert.True(t, f.ledger.GetBalance("u1").Equal(dec("500")))
	assert.EqualValues(t, 50, f.ledger.GetPosition("u1", "AAA").Quantity)

	// Both attempts are in the audit log.
	trades := f.log.ListByUser("u1", time.Time{})
	require.Len(t, trades, 2)
	assert.Equal(t, types.TradeStatusRejected, trades[0].Status)
	assert.Equal(t, types.TradeStatusCompleted, trades[1].Status)
}

func TestSellCreditsProceeds(t *testing.T) {
	f := newFixture(t, "1000", nil)
	ctx := context.Background()

	require.Equal(t, StatusSuccess, f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideBuy, 50)).Status)
	_, err := f.reg.ApplyPriceUpdate("AAA", dec("12.00"))
	require.NoError(t, err)

	res := f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideSell, 20))
	require.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.FillPrice.Equal(dec("12.00")))
	// 500 cash after buy + 240 proceeds.
	assert.True(t, f.ledger.GetBalance("u1").Equal(dec("740")))
	pos := f.ledger.GetPosition("u1", "AAA")
	assert.EqualValues(t, 30, pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(dec("10.00")), "sell must not move average cost")
}

func TestInsufficientFunds(t *testing.T) {
	f := newFixture(t, "100", nil)

	res := f.exec.Execute(context.Background(), marketOrder("u1", "AAA", types.TradeSideBuy, 11))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "insufficient funds", res.Message)
	assert.True(t, f.ledger.GetBalance("u1").Equal(dec("100")))
}

func TestLimitOrders(t *testing.T) {
	f := newFixture(t, "10000", nil)
	ctx := context.Background()
	limit := func(p string) *decimal.Decimal { d := dec(p); return &d }

	// BUY limit below market rejects with no mutation.
	res := f.exec.Execute(ctx, TradeRequest{
		UserID: "u1", Symbol: "AAA", Side: types.TradeSideBuy, Quantity: 10,
		OrderType: types.OrderTypeLimit, LimitPrice: limit("9.00"),
	})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "limit price not met", res.Message)
	assert.True(t, f.ledger.GetBalance("u1").Equal(dec("10000")))

	// BUY limit at or above market fills at the market price.
	res = f.exec.Execute(ctx, TradeRequest{
		UserID: "u1", Symbol: "AAA", Side: types.TradeSideBuy, Quantity: 10,
		OrderType: types.OrderTypeLimit, LimitPrice: limit("10.50"),
	})
	require.Equal(t, StatusSuccess, res.Status, res.Message)
	assert.True(t, res.FillPrice.Equal(dec("10.00")))

	// SELL limit above market rejects.
	res = f.exec.Execute(ctx, TradeRequest{
		UserID: "u1", Symbol: "AAA", Side: types.TradeSideSell, Quantity: 5,
		OrderType: types.OrderTypeLimit, LimitPrice: limit("11.00"),
	})
	assert.Equal(t, StatusFailed, res.Status)

	// Missing limit price is a validation error.
	res = f.exec.Execute(ctx, TradeRequest{
		UserID: "u1", Symbol: "AAA", Side: types.TradeSideSell, Quantity: 5,
		OrderType: types.OrderTypeLimit,
	})
	assert.Equal(t, StatusFailed, res.Status)
}

func TestInvalidOrdersRejectedIdempotently(t *testing.T) {
	f := newFixture(t, "1000", nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideBuy, 0))
		assert.Equal(t, StatusFailed, res.Status)
	}
	trades := f.log.ListByUser("u1", time.Time{})
	assert.Len(t, trades, 2)
	for _, tr := range trades {
		assert.Equal(t, types.TradeStatusRejected, tr.Status)
		assert.NotEmpty(t, tr.RejectionReason)
	}
	assert.True(t, f.ledger.GetBalance("u1").Equal(dec("1000")))
}

func TestUnknownAndInactiveInstruments(t *testing.T) {
	f := newFixture(t, "1000", nil)
	ctx := context.Background()

	res := f.exec.Execute(ctx, marketOrder("u1", "ZZZ", types.TradeSideBuy, 1))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "unknown stock code", res.Message)

	require.NoError(t, f.reg.SetActive("AAA", false))
	res = f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideBuy, 1))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "trading halted for this stock", res.Message)
}

func TestConcurrentSellsCannotDoubleSpendShares(t *testing.T) {
	f := newFixture(t, "1000", nil)
	ctx := context.Background()
	require.Equal(t, StatusSuccess, f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideBuy, 5)).Status)

	var wg sync.WaitGroup
	results := make([]TradeResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.exec.Execute(ctx, marketOrder("u1", "AAA", types.TradeSideSell, 5))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, r := range results {
		if r.Status == StatusSuccess {
			wins++
		} else {
			assert.Equal(t, "insufficient shares", r.Message)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent sell may win")
	assert.Zero(t, f.ledger.GetPosition("u1", "AAA").Quantity)
}

type failingJournal struct {
	mu    sync.Mutex
	calls int
}

func (f *failingJournal) RecordTrade(context.Context, model.Trade, *model.Account, *model.Position) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("disk full")
}

func TestJournalFaultRollsBackSettlement(t *testing.T) {
	j := &failingJournal{}
	f := newFixture(t, "1000", j)

	res := f.exec.Execute(context.Background(), marketOrder("u1", "AAA", types.TradeSideBuy, 10))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "trade could not be recorded, no changes applied", res.Message)
	assert.True(t, f.ledger.GetBalance("u1").Equal(dec("1000")))
	assert.Zero(t, f.ledger.GetPosition("u1", "AAA").Quantity)
	assert.Greater(t, j.calls, 0)

	trades := f.log.ListByUser("u1", time.Time{})
	require.Len(t, trades, 1)
	assert.Equal(t, types.TradeStatusRejected, trades[0].Status)
}

type captureJournal struct {
	mu     sync.Mutex
	trades []model.Trade
	accts  []model.Account
	poss   []model.Position
}

func (c *captureJournal) RecordTrade(_ context.Context, t model.Trade, a *model.Account, p *model.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades = append(c.trades, t)
	if a != nil {
		c.accts = append(c.accts, *a)
	}
	if p != nil {
		c.poss = append(c.poss, *p)
	}
	return nil
}

func TestJournalReceivesSettledSnapshots(t *testing.T) {
	j := &captureJournal{}
	f := newFixture(t, "1000", j)

	res := f.exec.Execute(context.Background(), marketOrder("u1", "AAA", types.TradeSideBuy, 10))
	require.Equal(t, StatusSuccess, res.Status)

	require.Len(t, j.trades, 1)
	require.Len(t, j.accts, 1)
	require.Len(t, j.poss, 1)
	assert.True(t, j.accts[0].CashBalance.Equal(dec("900")))
	assert.EqualValues(t, 10, j.poss[0].Quantity)
}

func TestTradeEventPublishedOnSettlementOnly(t *testing.T) {
	f := newFixture(t, "1000", nil)
	sub := f.bus.Subscribe(bus.TopicTrades("u1"))

	res := f.exec.Execute(context.Background(), marketOrder("u1", "AAA", types.TradeSideBuy, 10))
	require.Equal(t, StatusSuccess, res.Status)

	select {
	case evt := <-sub.C:
		assert.Equal(t, bus.EventTypeTrade, evt.Type)
		trade, ok := evt.Data.(model.Trade)
		require.True(t, ok)
		assert.Equal(t, res.TradeID, trade.ID)
	case <-time.After(time.Second):
		t.Fatal("no trade confirmation published")
	}

	// Rejections are answered synchronously, never broadcast.
	f.exec.Execute(context.Background(), marketOrder("u1", "AAA", types.TradeSideBuy, 0))
	select {
	case evt := <-sub.C:
		t.Fatalf("rejection must not publish, got %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFillIncrementsVolume(t *testing.T) {
	f := newFixture(t, "1000", nil)

	before, err := f.reg.Get("AAA")
	require.NoError(t, err)
	res := f.exec.Execute(context.Background(), marketOrder("u1", "AAA", types.TradeSideBuy, 25))
	require.Equal(t, StatusSuccess, res.Status)

	after, err := f.reg.Get("AAA")
	require.NoError(t, err)
	assert.Equal(t, before.Volume+25, after.Volume)
}

func TestTradeIDsAreMonotonic(t *testing.T) {
	f := newFixture(t, "100000", nil)
	var prev string
	for i := 0; i < 20; i++ {
		res := f.exec.Execute(context.Background(), marketOrder("u1", "AAA", types.TradeSideBuy, 1))
		require.Equal(t, StatusSuccess, res.Status)
		if prev != "" {
			assert.Greater(t, res.TradeID, prev)
		}
		prev = res.TradeID
	}
}
