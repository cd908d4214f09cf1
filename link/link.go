// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package link implements the framing layer: preamble search, header
// parsing, integrity checking, address filtering, and the circular
// receive buffer that tolerates asynchronous byte arrival. See spec
// section 4.2.
package link

import (
	"github.com/google/uuid"

	"github.com/protoserial/stack/bytesbuf"
	"github.com/protoserial/stack/event"
	"github.com/protoserial/stack/ident"
)

type pendingTx struct {
	buf      []byte
	objectID uuid.UUID
}

// Link is one framed point-to-point or multi-drop connection. It is
// driven entirely by polling: PushByte may be called from an
// interrupt-like context, everything else is called from the single
// control thread that also calls Tick.
type Link struct {
	iid ident.Interface
	opt Options

	rx *ring

	txQueue []pendingTx

	// ReceiveEvent fires for every fragment addressed to this link's
	// LocalAddress or BroadcastAddress. OtherReceiveEvent fires for
	// everything else seen on the medium (useful for multi-drop sniffing
	// and rate accounting). OverrunEvent fires whenever the receive buffer
	// lost bytes. TransmitBegan fires the object id of a fragment the
	// instant it leaves the transmit queue, for the transfer layer's
	// WAITING->SENT transition.
	ReceiveEvent      event.Subject[Fragment]
	OtherReceiveEvent event.Subject[Fragment]
	OverrunEvent      event.Subject[struct{}]
	TransmitBegan     event.Subject[uuid.UUID]
}

// New constructs a Link for the given interface identifier.
func New(iid ident.Interface, opts ...Option) *Link {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Link{
		iid: iid,
		opt: o,
		rx:  newRing(o.RxBufferSize),
	}
}

// Interface returns the identifier this Link was constructed with.
func (l *Link) Interface() ident.Interface { return l.iid }

// LocalAddress returns this Link's configured link-layer address, used by
// callers that build outgoing Fragments to fill in Source.
func (l *Link) LocalAddress() Address { return l.opt.LocalAddress }

// MaxPayload returns the largest payload this Link will frame.
func (l *Link) MaxPayload() int { return l.opt.MaxFragmentSize }

// MinimumPrealloc returns the (front, back) slack a caller should
// allocate in a fragment's Data before passing it to Enqueue, so framing
// never forces a reallocation.
func (l *Link) MinimumPrealloc() (front, back int) {
	return l.opt.PreambleLen + headerLen, footerLen(l.opt.FooterKind)
}

// Enqueue validates and serializes f, appending it to the bounded
// transmit queue. It returns ErrNoDestination, ErrBadPayload, or
// ErrNotWritable synchronously; successful framing is asynchronous and
// observed via PopTransmit/TransmitBegan.
func (l *Link) Enqueue(f Fragment) error {
	if f.Destination == AddressInvalid {
		return ErrNoDestination
	}
	size := f.Data.Len()
	if size == 0 || size > l.opt.MaxFragmentSize {
		return ErrBadPayload
	}
	if len(l.txQueue) >= l.opt.MaxQueueSize {
		return ErrNotWritable
	}

	h := header{destination: f.Destination, source: f.Source, size: byte(size)}
	hb := h.encode()

	f.Data.PushFrontBytes(hb[:])
	preamble := make([]byte, l.opt.PreambleLen)
	for i := range preamble {
		preamble[i] = l.opt.PreambleByte
	}
	f.Data.PushFrontBytes(preamble)

	footerSrc := f.Data.Bytes()[l.opt.PreambleLen:]
	footer := computeFooter(l.opt.FooterKind, l.opt.ByteOrder, footerSrc)
	f.Data.PushBackBytes(footer)

	buf := append([]byte(nil), f.Data.Bytes()...)
	l.txQueue = append(l.txQueue, pendingTx{buf: buf, objectID: f.ObjectID})
	return nil
}

// ReadyToSend reports whether PopTransmit has a buffer available. This is
// the transmit_ready predicate exposed to the byte transport.
func (l *Link) ReadyToSend() bool { return len(l.txQueue) > 0 }

// PopTransmit removes and returns the oldest queued serialized fragment
// (the transmit queue is strictly FIFO), firing TransmitBegan with its
// object id.
func (l *Link) PopTransmit() (buf []byte, objectID uuid.UUID, ok bool) {
	if len(l.txQueue) == 0 {
		return nil, uuid.UUID{}, false
	}
	p := l.txQueue[0]
	l.txQueue = l.txQueue[1:]
	l.TransmitBegan.Emit(p.objectID)
	return p.buf, p.objectID, true
}

// PushByte feeds one received byte into the circular receive buffer. It
// performs no allocation, no parsing, and no event emission, and is safe
// to call from an interrupt handler.
func (l *Link) PushByte(b byte) { l.rx.PushByte(b) }

// Tick runs one polled parse step: it scans from the read cursor toward
// the latest safely-written byte, recovering from corruption and partial
// data without ever raising, and delivers at most the fragments that are
// fully available right now.
func (l *Link) Tick() {
	if l.rx.checkOverrun() {
		if l.opt.Logger != nil {
			l.opt.Logger.WithField("interface", l.iid.String()).Warn("link: receive buffer overrun, resynchronizing")
		}
		l.OverrunEvent.Emit(struct{}{})
	}

	for {
		avail := l.rx.available()
		if avail == 0 {
			return
		}

		// Find any single occurrence of the preamble byte and move the read
		// cursor to it; the header is tried on the bytes right after it. A
		// multi-byte preamble (PreambleLen>1) is not matched as a run: a
		// failed header or footer decode below advances by one byte and
		// loops back here, so a corrupted or overlapping preamble is walked
		// past one byte at a time until decoding lands on a real header.
		// While too few bytes follow to decide, the cursor stays on the
		// preamble byte until more arrive.
		pos := -1
		for i := 0; i < avail; i++ {
			if l.rx.peek(i) == l.opt.PreambleByte {
				pos = i
				break
			}
		}
		if pos < 0 {
			l.rx.advance(avail)
			return
		}
		l.rx.advance(pos)
		avail = l.rx.available()

		if avail < 1+headerLen {
			return
		}
		hdr := make([]byte, headerLen)
		l.rx.peekN(1, headerLen, hdr)
		h, ok := decodeHeader(hdr, l.opt.MaxFragmentSize)
		if !ok {
			l.rx.advance(1)
			continue
		}

		fLen := footerLen(l.opt.FooterKind)
		total := headerLen + int(h.size) + fLen
		if avail < 1+total {
			return
		}

		body := make([]byte, total)
		l.rx.peekN(1, total, body)
		payload := body[headerLen : headerLen+int(h.size)]
		footer := body[headerLen+int(h.size):]
		if !verifyFooter(l.opt.FooterKind, l.opt.ByteOrder, body[:headerLen+int(h.size)], footer) {
			l.rx.advance(1)
			if l.opt.Logger != nil {
				l.opt.Logger.WithField("interface", l.iid.String()).Debug("link: footer mismatch, resyncing")
			}
			continue
		}

		l.rx.advance(1 + total)

		frag := NewFragment(h.source, h.destination, l.iid, bytesbuf.NewFromBytes(payload))

		if h.destination == l.opt.LocalAddress ||
			(l.opt.BroadcastAddress != AddressInvalid && h.destination == l.opt.BroadcastAddress) {
			l.ReceiveEvent.Emit(frag)
		} else {
			l.OtherReceiveEvent.Emit(frag)
		}
	}
}
