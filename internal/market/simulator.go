package market

import (
	"log"
	"math/rand"
	"time"

	"stocklab/internal/bus"
	"stocklab/internal/model"

	"github.com/shopspring/decimal"
)

// Simulator is the price engine: on every tick it walks each active
// instrument's price by a bounded random step, updates the registry and
// publishes the new snapshot. One symbol failing never aborts the tick.
type Simulator struct {
	reg  *Registry
	bus  *bus.Bus
	hist *History
	rng  *rand.Rand
	day  int
	stop chan struct{}
	done chan struct{}
}

func NewSimulator(reg *Registry, b *bus.Bus, hist *History) *Simulator {
	return &Simulator{
		reg:  reg,
		bus:  b,
		hist: hist,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		day:  time.Now().YearDay(),
	}
}

func (s *Simulator) Start(interval time.Duration) {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	log.Printf("[PriceEngine] ticking every %s for %d instruments", interval, len(s.reg.ListActive()))
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Simulator) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
}

// Tick runs one full update cycle over all active instruments.
func (s *Simulator) Tick() {
	if day := time.Now().YearDay(); day != s.day {
		s.day = day
		s.reg.Rollover()
		log.Printf("[PriceEngine] session rollover")
	}
	for _, inst := range s.reg.ListActive() {
		if err := s.step(inst); err != nil {
			log.Printf("[PriceEngine] %s: %v", inst.Symbol, err)
		}
	}
}

func (s *Simulator) step(inst model.Instrument) error {
	newPrice := s.nextPrice(inst)
	updated, err := s.reg.ApplyPriceUpdate(inst.Symbol, newPrice)
	if err != nil {
		return err
	}
	if delta := tickVolume(inst.CurrentPrice, updated.CurrentPrice); delta > 0 {
		if updated, err = s.reg.AddVolume(inst.Symbol, delta); err != nil {
			return err
		}
	}
	s.hist.Append(model.PricePoint{
		Symbol:    updated.Symbol,
		Price:     updated.CurrentPrice,
		Volume:    updated.Volume,
		Timestamp: updated.LastUpdated,
	})
	s.bus.Publish(bus.Event{
		Topic: bus.TopicPrices(updated.Symbol),
		Type:  bus.EventTypePrice,
		Data:  updated,
	})
	return nil
}

// nextPrice draws a uniform step within ±5% scaled by the instrument's
// volatility rank, clamped at one cent.
func (s *Simulator) nextPrice(inst model.Instrument) decimal.Decimal {
	factor := float64(inst.Volatility) / 10.0
	step := (s.rng.Float64() - 0.5) * 0.1 * factor
	next := inst.CurrentPrice.Mul(decimal.NewFromFloat(1 + step)).Round(2)
	if next.LessThan(minTick) {
		return minTick
	}
	return next
}

// tickVolume grows session volume in proportion to the relative move.
func tickVolume(oldPrice, newPrice decimal.Decimal) int64 {
	if !oldPrice.IsPositive() {
		return 0
	}
	rel := newPrice.Sub(oldPrice).Abs().DivRound(oldPrice, 8)
	return rel.Mul(decimal.NewFromInt(10_000)).IntPart()
}
