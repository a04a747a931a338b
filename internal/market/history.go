package market

import (
	"sync"
	"time"

	"stocklab/internal/model"
)

const maxHistoryPoints = 20_000

// History keeps a bounded in-memory tick history per symbol for the price
// chart endpoints. Durable history lives in the storage journal.
type History struct {
	mu     sync.RWMutex
	points map[string][]model.PricePoint
}

func NewHistory() *History {
	return &History{points: make(map[string][]model.PricePoint)}
}

func (h *History) Append(p model.PricePoint) {
	h.mu.Lock()
	pts := append(h.points[p.Symbol], p)
	if len(pts) > maxHistoryPoints {
		pts = pts[len(pts)-maxHistoryPoints:]
	}
	h.points[p.Symbol] = pts
	h.mu.Unlock()
}

// Since returns points at or after the cutoff, oldest first.
func (h *History) Since(symbol string, cutoff time.Time) []model.PricePoint {
	h.mu.RLock()
	pts := h.points[symbol]
	h.mu.RUnlock()
	// Points are appended in time order; find the first one inside the window.
	i := 0
	for i < len(pts) && pts[i].Timestamp.Before(cutoff) {
		i++
	}
	out := make([]model.PricePoint, len(pts)-i)
	copy(out, pts[i:])
	return out
}
