package playback

import "sync"

// Mailbox is a single-slot handoff channel: a new send overwrites an
// unconsumed prior value, so the consumer always observes the most recent
// value and never a backlog. This last-write-wins contract is relied on by
// the volume, track-control and playlist channels.
type Mailbox[T any] struct {
	mu     sync.Mutex
	value  T
	full   bool
	notify chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Put stores v, replacing any value that has not been taken yet.
// It never blocks.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	m.value = v
	m.full = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Take removes and returns the stored value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		var zero T
		return zero, false
	}
	v := m.value
	var zero T
	m.value = zero
	m.full = false
	return v, true
}

// Notify returns a channel that receives a signal after a Put. The signal is
// coalesced: rapid Puts may produce a single signal, which is fine because
// Take always yields the latest value.
func (m *Mailbox[T]) Notify() <-chan struct{} {
	return m.notify
}
