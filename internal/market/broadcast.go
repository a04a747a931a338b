package market

import (
	"time"

	"stocklab/internal/bus"
)

const topMoversCount = 5

// Broadcaster periodically pushes the full active snapshot list and the
// movers ranking for clients that watch the whole board rather than single
// symbols.
type Broadcaster struct {
	reg  *Registry
	bus  *bus.Bus
	stop chan struct{}
	done chan struct{}
}

func NewBroadcaster(reg *Registry, b *bus.Bus) *Broadcaster {
	return &Broadcaster{reg: reg, bus: b}
}

func (b *Broadcaster) Start(interval time.Duration) {
	if b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Broadcast()
			case <-b.stop:
				return
			}
		}
	}()
}

func (b *Broadcaster) Stop() {
	if b.stop == nil {
		return
	}
	close(b.stop)
	<-b.done
	b.stop = nil
}

func (b *Broadcaster) Broadcast() {
	b.bus.Publish(bus.Event{
		Topic: bus.TopicStocksAll,
		Type:  bus.EventTypeStocks,
		Data:  b.reg.ListActive(),
	})
	b.bus.Publish(bus.Event{
		Topic: bus.TopicStocksTop,
		Type:  bus.EventTypeTop,
		Data:  b.reg.TopMovers(topMoversCount),
	})
}
