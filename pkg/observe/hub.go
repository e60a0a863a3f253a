// Package observe delivers state snapshots to subscribers.
// Each subscriber channel holds at most one value: a slow reader skips intermediate
// snapshots and always finds the latest one.
package observe

import (
	"sync"
)

type Hub[T any] struct {
	lock   sync.Mutex
	nextID int
	subs   map[int]chan T
}

// Subscribe returns a channel receiving every published value (latest wins) and a cancel function
// that closes the channel. Cancel is safe to call more than once.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]chan T)
	}

	id := h.nextID
	h.nextID++

	ch := make(chan T, 1)
	h.subs[id] = ch

	cancel := func() {
		h.lock.Lock()
		defer h.lock.Unlock()

		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}

	return ch, cancel
}

// Publish never blocks. Callers that need ordered delivery publish while holding their own state lock.
func (h *Hub[T]) Publish(v T) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- v:
		default:
		}
	}
}

// Len is the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.subs)
}
