// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transfer

// idAllocator hands out 8-bit transfer ids, one counter per interface, that
// wrap around skipping 0 (0 is reserved to mean "no previous transfer").
type idAllocator struct {
	next byte
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1}
}

// Next returns the next id and advances the counter, skipping 0 on wraparound.
func (a *idAllocator) Next() byte {
	id := a.next
	a.next++
	if a.next == 0 {
		a.next = 1
	}
	return id
}
