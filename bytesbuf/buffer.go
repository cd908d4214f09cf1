// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bytesbuf provides a pre-allocable, front/back-expandable byte
// buffer used throughout the stack so that every layer can prepend or
// append its own header/footer without forcing a reallocation at the
// layers above it.
//
// A Buffer holds one contiguous backing array split into three regions:
// front slack, visible data, and back slack. Front and back slack exist
// purely so Expand can grow the visible region into already-allocated
// space; Shrink is the inverse and never reallocates.
package bytesbuf

import "fmt"

// Buffer is a contiguous byte sequence with front and back slack.
//
// The zero value is an empty Buffer with no backing storage; use New or
// NewFromBytes to pre-size one.
type Buffer struct {
	data   []byte
	offset int // bytes of front slack currently hidden before the visible region
	length int // size of the visible region
}

// New allocates a Buffer with front bytes of front slack, size visible
// bytes (zeroed), and back bytes of back slack.
func New(front, size, back int) *Buffer {
	b := &Buffer{}
	b.data = make([]byte, front+size+back)
	b.offset = front
	b.length = size
	return b
}

// NewFromBytes wraps p as the visible region of a Buffer with no slack.
// p is copied; later Expand/PushFront/PushBack calls reallocate as needed.
func NewFromBytes(p []byte) *Buffer {
	b := New(0, len(p), 0)
	copy(b.data, p)
	return b
}

// Len returns the size of the visible region.
func (b *Buffer) Len() int { return b.length }

// Cap returns the total number of allocated bytes (front slack + visible + back slack).
func (b *Buffer) Cap() int { return len(b.data) }

// FrontSlack returns the number of bytes available to Expand on the front without reallocating.
func (b *Buffer) FrontSlack() int { return b.offset }

// BackSlack returns the number of bytes available to Expand on the back without reallocating.
func (b *Buffer) BackSlack() int { return len(b.data) - b.offset - b.length }

// IsEmpty reports whether the visible region is empty.
func (b *Buffer) IsEmpty() bool { return b.length == 0 }

// At returns the byte at visible index i.
func (b *Buffer) At(i int) (byte, error) {
	if i < 0 || i >= b.length {
		return 0, fmt.Errorf("bytesbuf: index %d out of range (size %d)", i, b.length)
	}
	return b.data[b.offset+i], nil
}

// Set writes the byte at visible index i.
func (b *Buffer) Set(i int, v byte) error {
	if i < 0 || i >= b.length {
		return fmt.Errorf("bytesbuf: index %d out of range (size %d)", i, b.length)
	}
	b.data[b.offset+i] = v
	return nil
}

// Bytes returns the visible region as a slice aliasing the Buffer's storage.
// Callers must not retain it across a call that may reallocate (Expand,
// PushFront, PushBack with insufficient slack).
func (b *Buffer) Bytes() []byte { return b.data[b.offset : b.offset+b.length] }

// reserve ensures at least front bytes of front slack and back bytes of
// back slack are available, reallocating only if the current slack is
// insufficient. The visible region's contents and size are unchanged.
func (b *Buffer) reserve(front, back int) {
	if b.offset >= front && b.BackSlack() >= back {
		return
	}
	newCap := front + b.length + back
	newData := make([]byte, newCap)
	copy(newData[front:front+b.length], b.data[b.offset:b.offset+b.length])
	b.data = newData
	b.offset = front
}

// Expand grows the visible region by front bytes on the front and back
// bytes on the back, consuming slack where available and reallocating
// only when the existing slack is insufficient.
func (b *Buffer) Expand(front, back int) {
	if front == 0 && back == 0 {
		return
	}
	b.reserve(front, back)
	b.offset -= front
	b.length += front + back
}

// Shrink hides front bytes from the front and back bytes from the back of
// the visible region, zeroing the hidden bytes. It never reallocates.
func (b *Buffer) Shrink(front, back int) {
	if front == 0 && back == 0 {
		return
	}
	if b.length-(front+back) < 0 {
		for i := range b.data[b.offset : b.offset+b.length] {
			b.data[b.offset+i] = 0
		}
		b.length = 0
		return
	}
	if back > 0 {
		start := b.offset + b.length - back
		for i := 0; i < back; i++ {
			b.data[start+i] = 0
		}
		b.length -= back
	}
	if front > 0 {
		for i := 0; i < front; i++ {
			b.data[b.offset+i] = 0
		}
		b.offset += front
		b.length -= front
	}
}

// PushFront grows the buffer by one byte at the front and sets it to v.
func (b *Buffer) PushFront(v byte) {
	b.Expand(1, 0)
	b.data[b.offset] = v
}

// PushFrontBytes grows the buffer by len(p) bytes at the front and copies
// p into the new space, preserving p's order.
func (b *Buffer) PushFrontBytes(p []byte) {
	b.Expand(len(p), 0)
	copy(b.data[b.offset:b.offset+len(p)], p)
}

// PushBack grows the buffer by one byte at the back and sets it to v.
func (b *Buffer) PushBack(v byte) {
	b.Expand(0, 1)
	b.data[b.offset+b.length-1] = v
}

// PushBackBytes grows the buffer by len(p) bytes at the back and copies p
// into the new space.
func (b *Buffer) PushBackBytes(p []byte) {
	b.Expand(0, len(p))
	copy(b.data[b.offset+b.length-len(p):b.offset+b.length], p)
}

// Sub returns a new Buffer holding a copy of the visible bytes in [begin, end).
func (b *Buffer) Sub(begin, end int) (*Buffer, error) {
	if begin < 0 || end > b.length || begin > end {
		return nil, fmt.Errorf("bytesbuf: invalid sub range [%d,%d) of size %d", begin, end, b.length)
	}
	return NewFromBytes(b.data[b.offset+begin : b.offset+end]), nil
}

// Equal reports whether the two buffers have identical visible contents.
func (b *Buffer) Equal(other *Buffer) bool {
	if other == nil || b.length != other.length {
		return false
	}
	for i := 0; i < b.length; i++ {
		if b.data[b.offset+i] != other.data[other.offset+i] {
			return false
		}
	}
	return true
}

// Concat returns a new Buffer holding this buffer's contents followed by other's.
func (b *Buffer) Concat(other *Buffer) *Buffer {
	out := New(0, b.length+other.length, 0)
	copy(out.data, b.Bytes())
	copy(out.data[b.length:], other.Bytes())
	return out
}

// Clone returns a new Buffer with a copy of the visible contents and no slack.
func (b *Buffer) Clone() *Buffer { return NewFromBytes(b.Bytes()) }
