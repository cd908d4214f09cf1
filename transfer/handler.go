// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/protoserial/stack/bytesbuf"
	"github.com/protoserial/stack/ident"
	"github.com/protoserial/stack/link"
)

// State is a transfer's position in the consolidated state machine:
// NEW -> NEXT -> WAITING -> SENT -> (RETRY -> NEXT) | DONE.
type State uint8

const (
	StateNew State = iota
	StateNext
	StateWaiting
	StateSent
	StateRetry
	StateDone
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateNext:
		return "NEXT"
	case StateWaiting:
		return "WAITING"
	case StateSent:
		return "SENT"
	case StateRetry:
		return "RETRY"
	case StateDone:
		return "DONE"
	case StateDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// MaxRetries bounds how many retransmit timeouts an outgoing transfer is
// resent after (each resend starts again from its first fragment) before
// the whole transfer is abandoned.
const MaxRetries = 4

// outgoing tracks one transfer this layer is sending.
type outgoing struct {
	ID             byte
	PrevID         byte
	Destination    link.Address
	InterfaceID    ident.Interface
	Fragments      []*bytesbuf.Buffer // already split to link.MaxPayload minus transfer header room
	FragmentsTotal byte

	NextIndex  byte // 1-based index of the next fragment to hand to the link
	State      State
	ObjectID   uuid.UUID // object id of the fragment currently in the link's transmit queue
	SentAt     time.Time
	RetryCount int

	Done func(ok bool) // optional completion callback
}

func newOutgoing(id, prevID byte, dest link.Address, iid ident.Interface, fragments []*bytesbuf.Buffer) *outgoing {
	return &outgoing{
		ID:             id,
		PrevID:         prevID,
		Destination:    dest,
		InterfaceID:    iid,
		Fragments:      fragments,
		FragmentsTotal: byte(len(fragments)),
		NextIndex:      1,
		State:          StateNew,
	}
}

// incomplete is a transfer this layer is reassembling.
type incomplete struct {
	ID             byte
	PrevID         byte
	Source         link.Address
	InterfaceID    ident.Interface
	FragmentsTotal byte
	Fragments      map[byte]*bytesbuf.Buffer
	FirstSeenAt    time.Time
	CompletedAt    time.Time // zero until reassembly finishes; used for duplicate suppression
	LastReqAt      time.Time // zero until the first FRAGMENT_REQ is issued for this transfer
}

func newIncomplete(h header, source link.Address, iid ident.Interface) *incomplete {
	return &incomplete{
		ID:             h.ID,
		PrevID:         h.PrevID,
		Source:         source,
		InterfaceID:    iid,
		FragmentsTotal: h.FragmentsTotal,
		Fragments:      make(map[byte]*bytesbuf.Buffer, h.FragmentsTotal),
		FirstSeenAt:    time.Now(),
	}
}

func (in *incomplete) complete() bool {
	if in.FragmentsTotal == 0 {
		return false
	}
	return byte(len(in.Fragments)) >= in.FragmentsTotal
}

// earliestMissing returns the lowest fragment index not yet received, the
// one a FRAGMENT_REQ should name.
func (in *incomplete) earliestMissing() (byte, bool) {
	for i := byte(1); i <= in.FragmentsTotal; i++ {
		if _, ok := in.Fragments[i]; !ok {
			return i, true
		}
	}
	return 0, false
}

// Reassemble concatenates the received fragments in index order into one buffer.
func (in *incomplete) Reassemble() *bytesbuf.Buffer {
	out := bytesbuf.New(0, 0, 0)
	for i := byte(1); i <= in.FragmentsTotal; i++ {
		if frag, ok := in.Fragments[i]; ok {
			out = out.Concat(frag)
		}
	}
	return out
}
