// Package notify fans out game change events to in-process subscribers.
package notify

import (
	"sync"

	"battleship/internal/game"
)

// Event announces that a game moved to a new version. Digest is the state
// root a client can compare against its cached copy.
type Event struct {
	GameID  string      `json:"gameId"`
	Version int64       `json:"version"`
	Digest  string      `json:"digest,omitempty"`
	Status  game.Status `json:"status"`
}

const bufferSize = 8

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	ch   chan Event
	last int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscription]struct{})}
}

// Subscribe registers for events on gameID. The returned cancel func must
// be called once; it closes the channel.
func (h *Hub) Subscribe(gameID string) (<-chan Event, func()) {
	s := &subscription{ch: make(chan Event, bufferSize)}
	h.mu.Lock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[*subscription]struct{})
		h.subs[gameID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[gameID]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(h.subs, gameID)
				}
			}
			close(s.ch)
		})
	}
}

// Publish never blocks. A subscriber whose buffer is full misses the
// event; the next one carries a newer version anyway. Events not newer than
// the last one offered to a subscriber are dropped, so a channel never goes
// back in version.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[ev.GameID] {
		if ev.Version <= s.last {
			continue
		}
		s.last = ev.Version
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many listeners gameID has.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}
