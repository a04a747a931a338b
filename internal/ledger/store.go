package ledger

import (
	"context"
	"sync"
	"time"

	"stocklab/internal/model"
	"stocklab/internal/types"

	"github.com/shopspring/decimal"
)

// Store holds the authoritative cash balances and positions. Settlements run
// through WithUser, which serializes all writes for one user and commits the
// whole mutation set at once, so no reader ever observes a half-applied
// trade and a failed step leaves the ledger untouched.
type Store struct {
	mu      sync.RWMutex
	users   map[string]*userState
	opening decimal.Decimal
}

type userState struct {
	sem       chan struct{}
	mu        sync.RWMutex
	cash      decimal.Decimal
	positions map[string]model.Position
}

// NewStore creates a ledger where unknown users start with the given
// opening balance on first touch.
func NewStore(openingBalance decimal.Decimal) *Store {
	if openingBalance.IsNegative() {
		openingBalance = decimal.Zero
	}
	return &Store{users: make(map[string]*userState), opening: openingBalance}
}

func (s *Store) user(userID string) *userState {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return u
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok = s.users[userID]; ok {
		return u
	}
	u = &userState{
		sem:       make(chan struct{}, 1),
		cash:      s.opening,
		positions: make(map[string]model.Position),
	}
	s.users[userID] = u
	return u
}

// SeedAccount sets a user's cash directly; used for boot-time restore.
func (s *Store) SeedAccount(userID string, balance decimal.Decimal) {
	u := s.user(userID)
	u.mu.Lock()
	u.cash = balance
	u.mu.Unlock()
}

// SeedPosition installs a position directly; used for boot-time restore.
func (s *Store) SeedPosition(p model.Position) {
	u := s.user(p.UserID)
	u.mu.Lock()
	u.positions[p.Symbol] = p
	u.mu.Unlock()
}

func (s *Store) GetBalance(userID string) decimal.Decimal {
	u := s.user(userID)
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.cash
}

// GetPosition returns the user's holding in one symbol, zero-valued when
// none exists.
func (s *Store) GetPosition(userID, symbol string) model.Position {
	u := s.user(userID)
	u.mu.RLock()
	defer u.mu.RUnlock()
	if p, ok := u.positions[symbol]; ok {
		return p
	}
	return model.Position{UserID: userID, Symbol: symbol, AverageCost: decimal.Zero}
}

// Positions lists the user's non-empty holdings.
func (s *Store) Positions(userID string) []model.Position {
	u := s.user(userID)
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]model.Position, 0, len(u.positions))
	for _, p := range u.positions {
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	return out
}

// WithUser runs fn while holding the user's write lock and commits its
// mutations only if fn returns nil. Lock acquisition respects the context
// deadline; a timed-out settlement has no effect.
func (s *Store) WithUser(ctx context.Context, userID string, fn func(tx *Txn) error) error {
	u := s.user(userID)
	select {
	case u.sem <- struct{}{}:
	case <-ctx.Done():
		return ErrLockTimeout
	}
	defer func() { <-u.sem }()

	u.mu.RLock()
	tx := &Txn{
		userID: userID,
		cash:   u.cash,
		base:   u.positions,
		dirty:  make(map[string]model.Position),
	}
	u.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	u.mu.Lock()
	u.cash = tx.cash
	for sym, p := range tx.dirty {
		u.positions[sym] = p
	}
	u.mu.Unlock()
	return nil
}

// Txn is a working copy of one user's ledger state. Its mutations become
// visible only when WithUser commits.
type Txn struct {
	userID string
	cash   decimal.Decimal
	base   map[string]model.Position
	dirty  map[string]model.Position
}

func (tx *Txn) Balance() decimal.Decimal { return tx.cash }

func (tx *Txn) Debit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(tx.cash) {
		return ErrInsufficientFunds
	}
	tx.cash = tx.cash.Sub(amount)
	return nil
}

func (tx *Txn) Credit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	tx.cash = tx.cash.Add(amount)
	return nil
}

func (tx *Txn) Position(symbol string) model.Position {
	if p, ok := tx.dirty[symbol]; ok {
		return p
	}
	if p, ok := tx.base[symbol]; ok {
		return p
	}
	return model.Position{UserID: tx.userID, Symbol: symbol, AverageCost: decimal.Zero}
}

// AdjustPosition applies a fill of qty shares at fillPrice. Buys fold the
// fill into the weighted average cost; sells reduce quantity and leave the
// average cost alone.
func (tx *Txn) AdjustPosition(symbol string, qty int64, fillPrice decimal.Decimal, side types.TradeSide) (model.Position, error) {
	if qty <= 0 {
		return model.Position{}, ErrInvalidAmount
	}
	p := tx.Position(symbol)
	switch side {
	case types.TradeSideBuy:
		newQty := p.Quantity + qty
		oldCost := p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
		addCost := fillPrice.Mul(decimal.NewFromInt(qty))
		p.AverageCost = oldCost.Add(addCost).DivRound(decimal.NewFromInt(newQty), 2)
		p.Quantity = newQty
	case types.TradeSideSell:
		if qty > p.Quantity {
			return model.Position{}, ErrInsufficientShares
		}
		p.Quantity -= qty
	default:
		return model.Position{}, ErrInvalidAmount
	}
	p.UpdatedAt = time.Now().UTC()
	tx.dirty[symbol] = p
	return p, nil
}
