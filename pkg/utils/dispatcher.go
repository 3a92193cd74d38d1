// Package utils contains small generic helpers shared across packages.
package utils

import "sync"

// Dispatcher fans events out to subscribers. The zero value is ready to use.
type Dispatcher[T any] struct {
	mutex         sync.Mutex
	subscriptions []*Subscription[T]
}

// Subscription receives events fired on its dispatcher.
type Subscription[T any] struct {
	channel    chan T
	dispatcher *Dispatcher[T]
	blocking   bool
	once       sync.Once
}

// Subscribe registers a new subscription with a buffered channel of the given
// capacity. Blocking subscriptions make Fire wait for the receiver; others
// drop events when the buffer is full.
func (d *Dispatcher[T]) Subscribe(capacity int, blocking bool) *Subscription[T] {
	sub := &Subscription[T]{
		channel:    make(chan T, capacity),
		dispatcher: d,
		blocking:   blocking,
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.subscriptions = append(d.subscriptions, sub)

	return sub
}

// Fire delivers data to every subscription.
func (d *Dispatcher[T]) Fire(data T) {
	d.mutex.Lock()
	subs := make([]*Subscription[T], len(d.subscriptions))
	copy(subs, d.subscriptions)
	d.mutex.Unlock()

	for _, sub := range subs {
		if sub.blocking {
			sub.channel <- data
			continue
		}

		select {
		case sub.channel <- data:
		default:
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (d *Dispatcher[T]) SubscriberCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return len(d.subscriptions)
}

func (d *Dispatcher[T]) unsubscribe(sub *Subscription[T]) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for i, s := range d.subscriptions {
		if s == sub {
			d.subscriptions = append(d.subscriptions[:i], d.subscriptions[i+1:]...)
			return
		}
	}
}

// Channel returns the receive side of the subscription.
func (s *Subscription[T]) Channel() <-chan T {
	return s.channel
}

// Unsubscribe detaches the subscription. The channel is left open so pending
// readers in a select do not observe a spurious zero value.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.dispatcher.unsubscribe(s)
	})
}
