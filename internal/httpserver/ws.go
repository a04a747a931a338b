package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"stocklab/internal/bus"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler bridges bus topics onto one websocket connection. Every client
// gets the board snapshots and movers ranking; a user_id query param adds
// that user's private trade-confirmation queue, and clients may subscribe
// to individual price topics with control messages.
type WSHandler struct {
	bus      *bus.Bus
	origin   string
	upgrader websocket.Upgrader
}

func NewWSHandler(b *bus.Bus, origin string) *WSHandler {
	return &WSHandler{
		bus:    b,
		origin: origin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

type wsControlMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		if strings.Contains(reqOrigin, "localhost") || strings.Contains(reqOrigin, "127.0.0.1") {
			return true
		}
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// One bounded outbound queue per connection; a slow socket drops
	// events instead of backing up the bus.
	outbound := make(chan bus.Event, 256)
	forward := func(evt bus.Event) {
		select {
		case outbound <- evt:
		default:
		}
	}

	var subMu sync.Mutex
	subs := make(map[string]uuid.UUID)
	subscribe := func(topic string) {
		subMu.Lock()
		defer subMu.Unlock()
		if _, ok := subs[topic]; ok {
			return
		}
		subs[topic] = h.bus.SubscribeFunc(topic, forward)
	}
	unsubscribe := func(topic string) {
		subMu.Lock()
		defer subMu.Unlock()
		if id, ok := subs[topic]; ok {
			h.bus.Unsubscribe(id)
			delete(subs, topic)
		}
	}
	defer func() {
		subMu.Lock()
		for _, id := range subs {
			h.bus.Unsubscribe(id)
		}
		subMu.Unlock()
	}()

	subscribe(bus.TopicStocksAll)
	subscribe(bus.TopicStocksTop)
	// The identity service fronts this endpoint; user_id arrives
	// pre-validated.
	if userID := strings.TrimSpace(r.URL.Query().Get("user_id")); userID != "" {
		subscribe(bus.TopicTrades(userID))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ctrl wsControlMessage
			if err := json.Unmarshal(payload, &ctrl); err != nil {
				continue
			}
			topic := strings.TrimSpace(ctrl.Topic)
			if !strings.HasPrefix(topic, "prices.") {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(ctrl.Type)) {
			case "subscribe":
				subscribe(topic)
			case "unsubscribe":
				unsubscribe(topic)
			}
		}
	}()

	for {
		select {
		case evt := <-outbound:
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
