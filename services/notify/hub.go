package notifysvc

import (
	"context"
	"sync"

	"github.com/trezcool/tuitionbook/core/tuition"
)

const subscriberBuffer = 16

// Hub fans tuition changes out to the subscribers of this process.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan tuition.Change]struct{} // {tuitionID: {ch}}
}

var _ tuition.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan tuition.Change]struct{})}
}

// Subscribe returns the changes of tuitionID and a func to stop receiving them.
// Slow subscribers miss changes rather than block publishers.
func (h *Hub) Subscribe(tuitionID string) (<-chan tuition.Change, func()) {
	ch := make(chan tuition.Change, subscriberBuffer)

	h.mu.Lock()
	if h.subs[tuitionID] == nil {
		h.subs[tuitionID] = make(map[chan tuition.Change]struct{})
	}
	h.subs[tuitionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.subs[tuitionID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.subs, tuitionID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

func (h *Hub) Publish(_ context.Context, chg tuition.Change) {
	h.dispatch(chg)
}

func (h *Hub) dispatch(chg tuition.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[chg.TuitionID] {
		select {
		case ch <- chg:
		default:
		}
	}
}

// Subscribers returns the number of subscribers of tuitionID.
func (h *Hub) Subscribers(tuitionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tuitionID])
}
