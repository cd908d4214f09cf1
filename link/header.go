// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package link

// headerLen is the size in bytes of the fixed link header:
// destination, source, size, check.
const headerLen = 4

// header is the fixed, packed per-fragment link header.
type header struct {
	destination Address
	source      Address
	size        byte // payload length, 1..maxPayload
}

func (h header) checksum() byte {
	return byte(int(h.destination) + int(h.source) + int(h.size))
}

// encode writes the header into a 4-byte array in wire order.
func (h header) encode() [headerLen]byte {
	var b [headerLen]byte
	b[0] = byte(h.destination)
	b[1] = byte(h.source)
	b[2] = h.size
	b[3] = h.checksum()
	return b
}

// decodeHeader parses a header from the first headerLen bytes of p and
// validates its checksum and size bound. ok is false if the checksum is
// wrong, size is zero, size exceeds maxPayload, or destination equals
// source.
func decodeHeader(p []byte, maxPayload int) (h header, ok bool) {
	if len(p) < headerLen {
		return header{}, false
	}
	h = header{
		destination: Address(p[0]),
		source:      Address(p[1]),
		size:        p[2],
	}
	check := p[3]
	if h.checksum() != check {
		return header{}, false
	}
	if h.size == 0 || int(h.size) > maxPayload {
		return header{}, false
	}
	if h.destination == h.source {
		return header{}, false
	}
	return h, true
}
