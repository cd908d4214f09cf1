// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package event provides the observer/event mechanism shared by the link,
// transfer, and port layers: every cross-layer signal (a received
// fragment, a completed transfer, a transmit request) is a Subject that
// fans synchronous callbacks out to its subscribers in subscription
// order. Subscribers must not subscribe to the same Subject during its
// own emission.
package event

// Subject is a synchronous, multi-subscriber event channel for values of
// type T. The zero value is ready to use.
type Subject[T any] struct {
	subscribers []func(T)
}

// Subscribe registers fn to be called, in order, on every future Emit.
// It returns an index that Unsubscribe can use to remove fn again.
func (s *Subject[T]) Subscribe(fn func(T)) int {
	s.subscribers = append(s.subscribers, fn)
	return len(s.subscribers) - 1
}

// Unsubscribe removes the subscriber previously returned by Subscribe.
// It is a no-op for an already-removed or out-of-range index.
func (s *Subject[T]) Unsubscribe(idx int) {
	if idx < 0 || idx >= len(s.subscribers) || s.subscribers[idx] == nil {
		return
	}
	s.subscribers[idx] = nil
}

// Emit synchronously invokes every live subscriber with v, in subscription order.
func (s *Subject[T]) Emit(v T) {
	for _, fn := range s.subscribers {
		if fn != nil {
			fn(v)
		}
	}
}

// Len reports the number of live subscribers.
func (s *Subject[T]) Len() int {
	n := 0
	for _, fn := range s.subscribers {
		if fn != nil {
			n++
		}
	}
	return n
}
