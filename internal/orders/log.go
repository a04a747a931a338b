package orders

import (
	"sync"
	"time"

	"stocklab/internal/model"

	"github.com/oklog/ulid/v2"
)

// TradeLog is the append-only audit trail. IDs are monotonic ULIDs so log
// order and id order agree.
type TradeLog struct {
	mu     sync.RWMutex
	trades []model.Trade
}

func NewTradeLog() *TradeLog {
	return &TradeLog{}
}

func NewTradeID() string {
	return ulid.Make().String()
}

func (l *TradeLog) Append(t model.Trade) {
	l.mu.Lock()
	l.trades = append(l.trades, t)
	l.mu.Unlock()
}

// ListByUser returns the user's trades at or after the cutoff, newest first.
func (l *TradeLog) ListByUser(userID string, cutoff time.Time) []model.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Trade
	for i := len(l.trades) - 1; i >= 0; i-- {
		t := l.trades[i]
		if t.UserID == userID && !t.Timestamp.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (l *TradeLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}
