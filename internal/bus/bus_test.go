package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, c chan Event, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case evt := <-c:
			out = append(out, evt)
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(out))
		}
	}
	return out
}

func TestPublishDeliversToMatchingTopic(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(TopicPrices("000001"))
	other := b.Subscribe(TopicPrices("600519"))

	b.Publish(Event{Topic: TopicPrices("000001"), Type: EventTypePrice, Data: "x"})

	got := collect(t, sub.C, 1)
	assert.Equal(t, EventTypePrice, got[0].Type)
	select {
	case evt := <-other.C:
		t.Fatalf("unrelated subscriber received %+v", evt)
	default:
	}
}

func TestPricesAllReceivesEverySymbol(t *testing.T) {
	b := NewBus()
	all := b.Subscribe(TopicPricesAll)

	b.Publish(Event{Topic: TopicPrices("000001"), Type: EventTypePrice})
	b.Publish(Event{Topic: TopicPrices("600519"), Type: EventTypePrice})
	b.Publish(Event{Topic: TopicStocksAll, Type: EventTypeStocks})

	got := collect(t, all.C, 2)
	assert.Equal(t, TopicPrices("000001"), got[0].Topic)
	assert.Equal(t, TopicPrices("600519"), got[1].Topic)
	select {
	case evt := <-all.C:
		t.Fatalf("prices.all should not see %s", evt.Topic)
	default:
	}
}

func TestSlowSubscriberNeverBlocksPublisher(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(TopicStocksAll) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*3; i++ {
			b.Publish(Event{Topic: TopicStocksAll, Type: EventTypeStocks, Data: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.Len(t, sub.C, defaultBuffer)
}

func TestUnsubscribeStopsDeliveryAndClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(TopicStocksTop)
	b.Unsubscribe(sub.ID)

	b.Publish(Event{Topic: TopicStocksTop, Type: EventTypeTop})
	_, open := <-sub.C
	assert.False(t, open)

	// Double unsubscribe is a no-op.
	b.Unsubscribe(sub.ID)
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	b := NewBus()
	b.SubscribeFunc(TopicStocksAll, func(Event) { panic("boom") })

	var mu sync.Mutex
	var received int
	b.SubscribeFunc(TopicStocksAll, func(Event) {
		mu.Lock()
		received++
		mu.Unlock()
	})

	b.Publish(Event{Topic: TopicStocksAll, Type: EventTypeStocks})
	b.Publish(Event{Topic: TopicStocksAll, Type: EventTypeStocks})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received == 2
	}, 2*time.Second, 10*time.Millisecond)
}
