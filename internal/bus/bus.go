package bus

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is one message on the bus. The Type field is a closed set of kinds
// (see the EventType constants) so consumers never have to sniff payloads.
type Event struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

const (
	EventTypePrice  = "price"  // single instrument snapshot
	EventTypeStocks = "stocks" // batch snapshot of active instruments
	EventTypeTop    = "top"    // gainers/losers ranking
	EventTypeTrade  = "trade"  // trade confirmation for one user
)

const (
	TopicPricesAll = "prices.all"
	TopicStocksAll = "stocks.all"
	TopicStocksTop = "stocks.top"
)

func TopicPrices(symbol string) string { return "prices." + symbol }

func TopicTrades(userID string) string { return "trades." + userID }

const defaultBuffer = 100

// Subscription is a registered consumer. Events arrive on C; a subscriber
// that stops draining loses events rather than stalling publishers.
type Subscription struct {
	ID    uuid.UUID
	Topic string
	C     chan Event
}

type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uuid.UUID]*Subscription)}
}

// Subscribe registers for one topic. TopicPricesAll also receives every
// per-symbol price event.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		ID:    uuid.New(),
		Topic: topic,
		C:     make(chan Event, defaultBuffer),
	}
	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// SubscribeFunc drains a subscription in its own goroutine. A panicking
// handler only kills its own delivery loop, never the publisher or other
// subscribers.
func (b *Bus) SubscribeFunc(topic string, handler func(Event)) uuid.UUID {
	sub := b.Subscribe(topic)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Bus] handler for %s panicked: %v", topic, r)
				b.Unsubscribe(sub.ID)
			}
		}()
		for evt := range sub.C {
			handler(evt)
		}
	}()
	return sub.ID
}

func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.C)
	}
	b.mu.Unlock()
}

// Publish delivers to every matching subscriber without blocking: a full
// subscriber queue drops the event for that subscriber only.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	for _, sub := range b.subs {
		if !topicMatches(sub.Topic, evt.Topic) {
			continue
		}
		select {
		case sub.C <- evt:
		default:
		}
	}
	b.mu.RUnlock()
}

func topicMatches(subscribed, published string) bool {
	if subscribed == published {
		return true
	}
	return subscribed == TopicPricesAll && len(published) > 7 && published[:7] == "prices."
}
