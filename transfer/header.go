// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package transfer implements the reliability layer: fragmentation and
// reassembly of payloads too large for one link fragment, per-interface id
// allocation, retransmission, and RTT sampling from bordering fragments.
package transfer

// Type is the wire tag distinguishing the three kinds of transfer-layer
// fragment. Whether a FRAGMENT-typed fragment is first or last in its
// transfer is derived from comparing FragmentIndex against 1 and
// FragmentsTotal, never carried as a separate type value.
type Type uint8

const (
	// TypeInit is the zero value and never appears validly on the wire.
	TypeInit Type = iota
	// TypeFragment carries a slice of transfer payload, single or multi.
	TypeFragment
	// TypeAcknowledge confirms full receipt of the transfer named by ID.
	TypeAcknowledge
	// TypeRequest asks the peer to resend a specific fragment of the
	// transfer named by ID; FragmentIndex names the missing index.
	TypeRequest
)

// headerLen is the size in bytes of the fixed transfer header: type,
// fragment_index, fragments_total, id, prev_id, check.
const headerLen = 6

// header is the fixed per-fragment transfer header, carried as the first
// bytes of a link fragment's payload.
type header struct {
	Type           Type
	FragmentIndex  byte // 1-based; for TypeRequest, the index being requested
	FragmentsTotal byte
	ID             byte
	PrevID         byte
}

// isBordering reports whether FragmentIndex is the first or last fragment
// of a FragmentsTotal-sized transfer, i.e. eligible for RTT sampling and
// retransmit signaling.
func (h header) isBordering() bool {
	return h.FragmentIndex == 1 || h.FragmentIndex == h.FragmentsTotal
}

func (h header) checksum() byte {
	return byte(int(h.Type) + int(h.FragmentIndex) + int(h.FragmentsTotal) + int(h.ID) + int(h.PrevID))
}

func (h header) encode() [headerLen]byte {
	var b [headerLen]byte
	b[0] = byte(h.Type)
	b[1] = h.FragmentIndex
	b[2] = h.FragmentsTotal
	b[3] = h.ID
	b[4] = h.PrevID
	b[5] = h.checksum()
	return b
}

func decodeHeader(p []byte) (h header, ok bool) {
	if len(p) < headerLen {
		return header{}, false
	}
	h = header{
		Type:           Type(p[0]),
		FragmentIndex:  p[1],
		FragmentsTotal: p[2],
		ID:             p[3],
		PrevID:         p[4],
	}
	if h.checksum() != p[5] {
		return header{}, false
	}
	return h, true
}
