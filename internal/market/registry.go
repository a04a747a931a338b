package market

import (
	"sort"
	"strings"
	"sync"
	"time"

	"stocklab/internal/model"

	"github.com/shopspring/decimal"
)

var minTick = decimal.NewFromFloat(0.01)

// Registry is the catalog of tradable instruments. The outer map is fixed
// after construction (instruments are never deleted mid-session), so lookups
// share a read lock while each entry carries its own lock: updating one
// symbol never blocks another.
type Registry struct {
	mu      sync.RWMutex
	items   map[string]*entry
	symbols []string
}

type entry struct {
	mu   sync.RWMutex
	inst model.Instrument
}

func NewRegistry(catalog []Seed) *Registry {
	r := &Registry{items: make(map[string]*entry, len(catalog))}
	now := time.Now().UTC()
	for _, s := range catalog {
		price := s.Price.Round(2)
		r.items[s.Symbol] = &entry{inst: model.Instrument{
			Symbol:        s.Symbol,
			Name:          s.Name,
			Company:       s.Company,
			Industry:      s.Industry,
			CurrentPrice:  price,
			PreviousClose: price,
			OpenPrice:     price,
			HighPrice:     price,
			LowPrice:      price,
			MarketCap:     price.Mul(decimal.NewFromInt(s.Shares)),
			Volatility:    s.Volatility,
			IsActive:      true,
			LastUpdated:   now,
		}}
		r.symbols = append(r.symbols, s.Symbol)
	}
	sort.Strings(r.symbols)
	return r
}

func (r *Registry) lookup(symbol string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.items[symbol]
	r.mu.RUnlock()
	return e, ok
}

func (r *Registry) Get(symbol string) (model.Instrument, error) {
	e, ok := r.lookup(symbol)
	if !ok {
		return model.Instrument{}, ErrUnknownInstrument
	}
	e.mu.RLock()
	inst := e.inst
	e.mu.RUnlock()
	return inst, nil
}

// ListActive returns active instruments ordered by symbol.
func (r *Registry) ListActive() []model.Instrument {
	r.mu.RLock()
	symbols := r.symbols
	r.mu.RUnlock()
	out := make([]model.Instrument, 0, len(symbols))
	for _, sym := range symbols {
		e := r.items[sym]
		e.mu.RLock()
		if e.inst.IsActive {
			out = append(out, e.inst)
		}
		e.mu.RUnlock()
	}
	return out
}

// Search matches keyword against symbol, name and company,
// case-insensitively.
func (r *Registry) Search(keyword string) []model.Instrument {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}
	var out []model.Instrument
	for _, inst := range r.ListActive() {
		if strings.Contains(strings.ToLower(inst.Symbol), kw) ||
			strings.Contains(strings.ToLower(inst.Name), kw) ||
			strings.Contains(strings.ToLower(inst.Company), kw) {
			out = append(out, inst)
		}
	}
	return out
}

// ApplyPriceUpdate moves a symbol to newPrice and recomputes the derived
// fields. Unknown or inactive symbols are rejected with no side effect.
func (r *Registry) ApplyPriceUpdate(symbol string, newPrice decimal.Decimal) (model.Instrument, error) {
	if newPrice.LessThanOrEqual(decimal.Zero) {
		return model.Instrument{}, ErrInvalidPrice
	}
	e, ok := r.lookup(symbol)
	if !ok {
		return model.Instrument{}, ErrUnknownInstrument
	}
	newPrice = newPrice.Round(2)
	if newPrice.LessThan(minTick) {
		newPrice = minTick
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inst.IsActive {
		return model.Instrument{}, ErrInstrumentInactive
	}
	e.inst.CurrentPrice = newPrice
	if newPrice.GreaterThan(e.inst.HighPrice) {
		e.inst.HighPrice = newPrice
	}
	if newPrice.LessThan(e.inst.LowPrice) {
		e.inst.LowPrice = newPrice
	}
	recomputeDerived(&e.inst)
	e.inst.LastUpdated = time.Now().UTC()
	return e.inst, nil
}

// AddVolume bumps the session volume; called on order fills and on
// simulator ticks.
func (r *Registry) AddVolume(symbol string, delta int64) (model.Instrument, error) {
	e, ok := r.lookup(symbol)
	if !ok {
		return model.Instrument{}, ErrUnknownInstrument
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.inst.IsActive {
		return model.Instrument{}, ErrInstrumentInactive
	}
	if delta > 0 {
		e.inst.Volume += delta
		e.inst.LastUpdated = time.Now().UTC()
	}
	return e.inst, nil
}

// SetActive halts or resumes trading on a symbol. Deactivated instruments
// stay listed in Get but drop out of ListActive and refuse updates.
func (r *Registry) SetActive(symbol string, active bool) error {
	e, ok := r.lookup(symbol)
	if !ok {
		return ErrUnknownInstrument
	}
	e.mu.Lock()
	e.inst.IsActive = active
	e.inst.LastUpdated = time.Now().UTC()
	e.mu.Unlock()
	return nil
}

// Rollover starts a new trading session: previous close becomes the current
// price, the daily range collapses onto it and volume resets.
func (r *Registry) Rollover() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now().UTC()
	for _, e := range r.items {
		e.mu.Lock()
		e.inst.PreviousClose = e.inst.CurrentPrice
		e.inst.OpenPrice = e.inst.CurrentPrice
		e.inst.HighPrice = e.inst.CurrentPrice
		e.inst.LowPrice = e.inst.CurrentPrice
		e.inst.Volume = 0
		recomputeDerived(&e.inst)
		e.inst.LastUpdated = now
		e.mu.Unlock()
	}
}

// TopMovers returns the n largest gainers followed by the n largest losers,
// ranked by change percent.
func (r *Registry) TopMovers(n int) []model.Instrument {
	actives := r.ListActive()
	sort.SliceStable(actives, func(i, j int) bool {
		return actives[i].ChangePercent.GreaterThan(actives[j].ChangePercent)
	})
	if len(actives) <= 2*n {
		return actives
	}
	out := make([]model.Instrument, 0, 2*n)
	out = append(out, actives[:n]...)
	out = append(out, actives[len(actives)-n:]...)
	return out
}

func recomputeDerived(inst *model.Instrument) {
	inst.Change = inst.CurrentPrice.Sub(inst.PreviousClose)
	if inst.PreviousClose.IsPositive() {
		inst.ChangePercent = inst.Change.DivRound(inst.PreviousClose, 6).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		inst.ChangePercent = decimal.Zero
	}
}
