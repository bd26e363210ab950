package engine

import (
	"sync"

	"github.com/vk/scopeflow/internal/store"
)

// delivery is one queued store. settled marks a re-delivery from a quiescent
// point, where an undecided upstream gate must be settled in place instead
// of parking the store again.
type delivery struct {
	st      *store.ProductStore
	settled bool
}

// mailbox is an unbounded FIFO queue of deliveries. Unbounded matters: a
// node body publishes derived stores while other mailboxes are still
// draining, and a bounded channel there can deadlock the fan-out. FIFO
// matters for folds, whose same-partition updates must apply in delivery
// order.
type mailbox struct {
	mu     sync.Mutex
	buf    []delivery
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(d delivery) {
	m.mu.Lock()
	m.buf = append(m.buf, d)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// next blocks until a delivery is available or the mailbox is closed and
// drained. The second result is false only in the latter case.
func (m *mailbox) next() (delivery, bool) {
	for {
		m.mu.Lock()
		if len(m.buf) > 0 {
			d := m.buf[0]
			m.buf = m.buf[1:]
			m.mu.Unlock()
			return d, true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return delivery{}, false
		}
		<-m.notify
	}
}
