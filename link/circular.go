// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package link

import "sync/atomic"

// ring is the link layer's circular receive buffer. Exactly one producer
// (the byte source, potentially an interrupt handler) calls PushByte;
// exactly one consumer (the Tick parse step) calls the read-side methods.
// The producer only ever advances the write cursor; the consumer only
// ever advances the read cursor. Cursors are monotonically increasing
// byte counts rather than wrapped indices, so "distance" and "did we
// overrun" are plain subtraction instead of modular arithmetic on two
// iterators.
type ring struct {
	buf []byte

	// written is the total number of bytes ever pushed. It is the only
	// field mutated by the producer and is read with atomic loads so a
	// platform without guaranteed aligned-word visibility still sees it
	// eventually, matching the "eventual visibility, not synchronous
	// delivery" contract in the concurrency model.
	written atomic.Uint64

	// read is the total number of bytes consumed by the parser. Owned
	// exclusively by the consumer.
	read uint64
}

func newRing(size int) *ring {
	if size <= 0 {
		size = 1
	}
	return &ring{buf: make([]byte, size)}
}

// PushByte is safe to call from an interrupt-like context: it performs no
// allocation, no parsing, and no event emission.
func (r *ring) PushByte(b byte) {
	w := r.written.Load()
	r.buf[int(w%uint64(len(r.buf)))] = b
	r.written.Add(1)
}

// checkOverrun reports whether the producer has written more bytes than
// the buffer holds since the last read, and if so resynchronizes the read
// cursor to the current write cursor (the only safe recovery: the
// oldest unread bytes are already gone).
func (r *ring) checkOverrun() (overran bool) {
	w := r.written.Load()
	if w-r.read > uint64(len(r.buf)) {
		r.read = w
		return true
	}
	return false
}

// available returns the number of unread bytes currently in the buffer.
func (r *ring) available() int {
	w := r.written.Load()
	return int(w - r.read)
}

// peek returns the unread byte at offset i past the read cursor (i must be < available()).
func (r *ring) peek(i int) byte {
	return r.buf[int((r.read+uint64(i))%uint64(len(r.buf)))]
}

// peekN copies n unread bytes starting at offset i into dst.
func (r *ring) peekN(i, n int, dst []byte) {
	for j := 0; j < n; j++ {
		dst[j] = r.peek(i + j)
	}
}

// advance moves the read cursor forward by n bytes.
func (r *ring) advance(n int) { r.read += uint64(n) }
