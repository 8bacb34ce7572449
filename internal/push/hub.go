package push

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/matthewbaird/entitygrid/internal/session"
	"github.com/matthewbaird/entitygrid/internal/store"
)

// DefaultBuffer is how many batches a connection may fall behind before it
// is dropped.
const DefaultBuffer = 64

// Hub fans change batches out to subscribed connections.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
}

type subscription struct {
	sess    *session.Session
	ch      chan []store.Change
	done    chan struct{}
	once    sync.Once
	dropped atomic.Bool
}

func (s *subscription) close() { s.once.Do(func() { close(s.done) }) }

// NewHub creates a hub; buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[*subscription]struct{}), buffer: buffer}
}

func (h *Hub) add(sess *session.Session) *subscription {
	sub := &subscription{
		sess: sess,
		ch:   make(chan []store.Change, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	sub.close()
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish wakes every subscription following one of the changed types. The
// connection reads the log itself, so the batch only needs to say which
// types moved. A subscription whose queue is full is dropped; its client
// reconnects from its watermark.
func (h *Hub) Publish(changes ...store.Change) {
	if h == nil || len(changes) == 0 {
		return
	}
	h.mu.RLock()
	var slow []*subscription
	for sub := range h.subs {
		var batch []store.Change
		for _, c := range changes {
			if sub.sess.Wants(c.Type) {
				batch = append(batch, c)
			}
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case sub.ch <- batch:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		log.Printf("push: dropping slow session %s", sub.sess.ID)
		sub.dropped.Store(true)
		h.remove(sub)
	}
}
