// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transfer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/protoserial/stack/bytesbuf"
	"github.com/protoserial/stack/event"
	"github.com/protoserial/stack/ident"
	"github.com/protoserial/stack/link"
)

// Received is delivered once a transfer (single-fragment or reassembled)
// is fully available.
type Received struct {
	Source      link.Address
	InterfaceID ident.Interface
	Data        *bytesbuf.Buffer
}

// PeerSample reports an update to a peer's tracked rate, so a host can
// mirror it into its own metrics sink without this package depending on
// one directly.
type PeerSample struct {
	Interface string
	Address   link.Address
	Rate      float64
}

// sentHistoryWindow bounds how long a completed outgoing transfer is kept
// around so a late FRAGMENT_REQ from the peer can still trigger a resend.
const sentHistoryWindow = 5 * time.Second

type sentRecord struct {
	o          *outgoing
	completeAt time.Time
}

// Layer is the transfer-layer orchestrator. It holds references to the
// links it drives, never ownership: construction and lifecycle of a
// link.Link belong entirely to the caller, mirroring the rest of this
// stack's habit of wiring cooperating components through plain back
// references rather than embedding.
type Layer struct {
	opt Options

	links map[string]*link.Link // keyed by ident.Interface.String()

	idAllocs map[string]*idAllocator
	peers    map[string]*peer // keyed by interface+address

	outgoingQueue []*outgoing
	byObjectID    map[uuid.UUID]*outgoing
	recentSent    map[string]sentRecord // keyed by interface+id

	incoming map[string]*incomplete // keyed by interface+source+id
	held     map[string]time.Time   // duplicate-suppression hold, same key

	ReceiveEvent   event.Subject[Received]
	PeerRateEvent  event.Subject[PeerSample]
	PeerRetryEvent event.Subject[PeerSample]
}

// NewLayer constructs an empty transfer Layer.
func NewLayer(opts ...Option) *Layer {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Layer{
		opt:        o,
		links:      make(map[string]*link.Link),
		idAllocs:   make(map[string]*idAllocator),
		peers:      make(map[string]*peer),
		byObjectID: make(map[uuid.UUID]*outgoing),
		recentSent: make(map[string]sentRecord),
		incoming:   make(map[string]*incomplete),
		held:       make(map[string]time.Time),
	}
}

func peerKey(iid ident.Interface, addr link.Address) string {
	return iid.String() + "#" + fmt.Sprint(addr)
}

func idKey(iid ident.Interface, addr link.Address, id byte) string {
	return peerKey(iid, addr) + "@" + fmt.Sprint(id)
}

// Attach subscribes this Layer to l's receive and transmit events. l's
// address and rate configuration are read once at attach time. Attaching
// the same interface a second time is an error, the same duplicate rule
// the port registry applies to its own registrations.
func (t *Layer) Attach(l *link.Link) error {
	name := l.Interface().String()
	if _, exists := t.links[name]; exists {
		return fmt.Errorf("transfer: interface %s already attached", name)
	}
	t.links[name] = l
	t.idAllocs[name] = newIDAllocator()

	l.ReceiveEvent.Subscribe(func(f link.Fragment) { t.onReceive(f) })
	l.TransmitBegan.Subscribe(func(id uuid.UUID) { t.onTransmitBegan(id) })
	return nil
}

func (t *Layer) peerFor(iid ident.Interface, addr link.Address) *peer {
	k := peerKey(iid, addr)
	p, ok := t.peers[k]
	if !ok {
		p = newPeer(iid.String(), addr, t.opt.PeerRate, t.opt.TRIncrease, t.opt.TRDecrease)
		t.peers[k] = p
	}
	return p
}

// MinimumPrealloc returns the (front, back) slack a caller should reserve
// in a payload buffer before passing it to Send over l, so splitting into
// fragments and framing at every layer below never forces a reallocation.
func (t *Layer) MinimumPrealloc(l *link.Link) (front, back int) {
	lf, lb := l.MinimumPrealloc()
	return headerLen + lf, lb
}

// Send splits data into fragments sized to fit l's MaxPayload (reserving
// room for the transfer header and l's own framing on every fragment),
// queues them as one outgoing transfer, and returns the id the peer will
// see on the wire. done, if non-nil, is called once with true on
// acknowledgement or false if the transfer is abandoned after MaxRetries.
func (t *Layer) Send(l *link.Link, dest link.Address, data *bytesbuf.Buffer, done func(ok bool)) (byte, error) {
	iid := l.Interface()
	name := iid.String()
	alloc, ok := t.idAllocs[name]
	if !ok {
		return 0, fmt.Errorf("transfer: link %s not attached", name)
	}

	payloadPer := l.MaxPayload() - headerLen
	if payloadPer <= 0 {
		return 0, fmt.Errorf("transfer: link %s MaxFragmentSize too small for a transfer header", name)
	}
	front, back := t.MinimumPrealloc(l)

	total := data.Len()
	var fragments []*bytesbuf.Buffer
	if total == 0 {
		fragments = []*bytesbuf.Buffer{bytesbuf.New(front, 0, back)}
	}
	for off := 0; off < total; off += payloadPer {
		end := off + payloadPer
		if end > total {
			end = total
		}
		buf := bytesbuf.New(front, end-off, back)
		copy(buf.Bytes(), data.Bytes()[off:end])
		fragments = append(fragments, buf)
	}
	if len(fragments) > 255 {
		return 0, fmt.Errorf("transfer: payload needs %d fragments, max 255", len(fragments))
	}

	id := alloc.Next()
	o := newOutgoing(id, 0, dest, iid, fragments)
	o.Done = done
	t.outgoingQueue = append(t.outgoingQueue, o)
	return id, nil
}

// Tick drives one control-loop step. It first walks incoming transfers,
// retransmit-requesting stalled ones and dropping timed-out ones, then
// advances the outgoing send state machine and its own retransmit
// timeout checks. It should be called once per iteration, after the
// attached links' own Tick.
func (t *Layer) Tick() {
	t.scanIncoming()

	t.checkTimeouts()
	t.cleanupHeld()

	o := nextReady(t.outgoingQueue)
	if o == nil {
		return
	}
	l, ok := t.links[o.InterfaceID.String()]
	if !ok {
		return
	}

	idx := o.NextIndex
	payload := o.Fragments[idx-1]
	h := header{
		Type:           TypeFragment,
		FragmentIndex:  idx,
		FragmentsTotal: o.FragmentsTotal,
		ID:             o.ID,
		PrevID:         o.PrevID,
	}
	hb := h.encode()
	payload.PushFrontBytes(hb[:])

	frag := link.NewFragment(l.LocalAddress(), o.Destination, o.InterfaceID, payload)
	if err := l.Enqueue(frag); err != nil {
		payload.Shrink(headerLen, 0)
		return // queue full or link rejected; retry next tick
	}
	lf, lb := l.MinimumPrealloc()
	payload.Shrink(lf+headerLen, lb) // restore payload view for a possible resend

	o.ObjectID = frag.ObjectID
	o.State = StateWaiting
	t.byObjectID[frag.ObjectID] = o
}

// onTransmitBegan fires once a queued fragment has actually left the
// link's transmit queue. Interior fragments of a multi-fragment transfer
// are streamed with no per-fragment handshake, so this advances straight
// to the next fragment; only the bordering last fragment transitions the
// whole transfer to SENT, where it waits for the peer's acknowledgement
// or a retransmit timeout.
func (t *Layer) onTransmitBegan(id uuid.UUID) {
	o, ok := t.byObjectID[id]
	if !ok || o.State != StateWaiting {
		return
	}
	delete(t.byObjectID, id)

	if o.NextIndex < o.FragmentsTotal {
		o.NextIndex++
		o.State = StateNext
		return
	}
	o.State = StateSent
	o.SentAt = time.Now()
}

func (t *Layer) checkTimeouts() {
	now := time.Now()
	for _, o := range t.outgoingQueue {
		if o.State != StateSent {
			continue
		}
		p := t.peerFor(o.InterfaceID, o.Destination)
		timeout := p.RetransmitTimeout(len(o.Fragments[o.NextIndex-1].Bytes()) + headerLen)
		if now.Sub(o.SentAt) < timeout {
			continue
		}
		p.OnTimeout()
		t.PeerRetryEvent.Emit(PeerSample{Interface: o.InterfaceID.String(), Address: o.Destination, Rate: p.rate})
		o.RetryCount++
		if o.RetryCount > MaxRetries {
			o.State = StateDropped
			if o.Done != nil {
				o.Done(false)
			}
			continue
		}
		o.State = StateRetry
	}

	retryToNext := t.outgoingQueue[:0]
	for _, o := range t.outgoingQueue {
		if o.State == StateDone || o.State == StateDropped {
			t.recentSent[idKey(o.InterfaceID, o.Destination, o.ID)] = sentRecord{o: o, completeAt: now}
			continue
		}
		if o.State == StateRetry {
			o.State = StateNext
			o.NextIndex = 1 // sender-detected timeout named no fragment; resend from the start
		}
		retryToNext = append(retryToNext, o)
	}
	t.outgoingQueue = retryToNext
}

func (t *Layer) cleanupHeld() {
	now := time.Now()
	for k, at := range t.held {
		if now.Sub(at) > t.opt.MinimumIncomingHoldTime {
			delete(t.held, k)
		}
	}
	for k, r := range t.recentSent {
		if now.Sub(r.completeAt) > sentHistoryWindow {
			delete(t.recentSent, k)
		}
	}
}

// scanIncoming walks transfers this layer is reassembling: it issues a
// FRAGMENT_REQ for one whose earliest missing fragment has been stalled
// longer than the configured holdoff, and drops one whose inactivity
// exceeds the configured timeout.
func (t *Layer) scanIncoming() {
	now := time.Now()
	for key, in := range t.incoming {
		l, ok := t.links[in.InterfaceID.String()]
		if !ok {
			continue
		}
		p := t.peerFor(in.InterfaceID, in.Source)
		base := p.RetransmitTimeout(l.MaxPayload())

		inactivity := time.Duration(float64(base) * t.opt.InactivityTimeoutMultiplier)
		if now.Sub(in.FirstSeenAt) > inactivity {
			delete(t.incoming, key)
			continue
		}

		missing, ok := in.earliestMissing()
		if !ok {
			continue
		}
		since := in.FirstSeenAt
		if !in.LastReqAt.IsZero() {
			since = in.LastReqAt
		}
		holdoff := time.Duration(float64(base) * t.opt.RetransmitRequestHoldoffMultiplier)
		if now.Sub(since) < holdoff {
			continue
		}
		t.requestFragment(l, in, missing)
		in.LastReqAt = now
	}
}

func (t *Layer) requestFragment(l *link.Link, in *incomplete, index byte) {
	reqHdr := header{Type: TypeRequest, FragmentIndex: index, FragmentsTotal: in.FragmentsTotal, ID: in.ID, PrevID: in.PrevID}
	hb := reqHdr.encode()
	front, back := l.MinimumPrealloc()
	buf := bytesbuf.New(front, headerLen, back)
	copy(buf.Bytes(), hb[:])
	_ = l.Enqueue(link.NewFragment(l.LocalAddress(), in.Source, in.InterfaceID, buf))
}

func (t *Layer) onReceive(f link.Fragment) {
	payload := f.Data.Bytes()
	h, ok := decodeHeader(payload)
	if !ok {
		return
	}
	body := f.Data.Bytes()[headerLen:]

	switch h.Type {
	case TypeAcknowledge:
		t.handleAck(f, h)
	case TypeRequest:
		t.handleRequest(f, h)
	case TypeFragment:
		t.handleData(f, h, body)
	}
}

func (t *Layer) handleAck(f link.Fragment, h header) {
	key := idKey(f.InterfaceID, f.Source, h.ID)
	for i, o := range t.outgoingQueue {
		if o.ID == h.ID && o.Destination == f.Source && o.InterfaceID.Equal(f.InterfaceID) {
			o.State = StateDone
			if !o.SentAt.IsZero() {
				p := t.peerFor(o.InterfaceID, o.Destination)
				p.SampleRTT(time.Since(o.SentAt), len(o.Fragments[len(o.Fragments)-1].Bytes())+headerLen)
				t.PeerRateEvent.Emit(PeerSample{Interface: o.InterfaceID.String(), Address: o.Destination, Rate: p.rate})
			}
			if o.Done != nil {
				o.Done(true)
			}
			t.outgoingQueue = append(t.outgoingQueue[:i], t.outgoingQueue[i+1:]...)
			break
		}
	}
	delete(t.recentSent, key)
}

// handleRequest resumes an outgoing transfer at the peer-named fragment
// index (SENT -> RETRY -> NEXT). A transfer still live in the queue is
// reset in place; a late request arriving after the transfer already
// completed is revived out of recentSent.
func (t *Layer) handleRequest(f link.Fragment, h header) {
	if h.isBordering() {
		// a request naming the first or last fragment signals the peer lost
		// the fragment most likely to carry the RTT sample; treat it the
		// same as a sender-detected timeout for rate control purposes.
		p := t.peerFor(f.InterfaceID, f.Source)
		p.OnTimeout()
		t.PeerRetryEvent.Emit(PeerSample{Interface: f.InterfaceID.String(), Address: f.Source, Rate: p.rate})
	}

	for _, o := range t.outgoingQueue {
		if o.ID == h.ID && o.Destination == f.Source && o.InterfaceID.Equal(f.InterfaceID) {
			o.NextIndex = h.FragmentIndex
			o.RetryCount = 0
			o.State = StateNext
			return
		}
	}

	key := idKey(f.InterfaceID, f.Source, h.ID)
	r, ok := t.recentSent[key]
	if !ok {
		return
	}
	r.o.NextIndex = h.FragmentIndex
	r.o.RetryCount = 0
	r.o.State = StateNext
	t.outgoingQueue = append(t.outgoingQueue, r.o)
	delete(t.recentSent, key)
}

func (t *Layer) handleData(f link.Fragment, h header, body []byte) {
	key := idKey(f.InterfaceID, f.Source, h.ID)

	if h.FragmentsTotal <= 1 {
		if _, heldAt := t.held[key]; heldAt {
			t.ackTo(f, h) // peer's original ack was likely lost; re-ack, don't re-emit receive
			return
		}
		data := bytesbuf.NewFromBytes(body)
		t.held[key] = time.Now()
		t.ReceiveEvent.Emit(Received{Source: f.Source, InterfaceID: f.InterfaceID, Data: data})
		t.ackTo(f, h)
		return
	}

	in, active := t.incoming[key]
	if !active {
		if _, heldAt := t.held[key]; heldAt {
			t.ackTo(f, h) // duplicate of an already-completed transfer; re-ack, don't re-emit receive
			return
		}
		if h.FragmentIndex != 1 {
			return // admission only via fragment index 1 of an unknown id
		}
		in = newIncomplete(h, f.Source, f.InterfaceID)
		t.incoming[key] = in
	}

	in.Fragments[h.FragmentIndex] = bytesbuf.NewFromBytes(body)

	if !in.complete() {
		return
	}

	in.CompletedAt = time.Now()
	t.held[key] = in.CompletedAt
	delete(t.incoming, key)

	t.ReceiveEvent.Emit(Received{Source: in.Source, InterfaceID: in.InterfaceID, Data: in.Reassemble()})
	t.ackTo(f, h)
}

func (t *Layer) ackTo(f link.Fragment, h header) {
	l, ok := t.links[f.InterfaceID.String()]
	if !ok {
		return
	}
	ackHdr := header{Type: TypeAcknowledge, FragmentIndex: h.FragmentsTotal, FragmentsTotal: h.FragmentsTotal, ID: h.ID, PrevID: h.PrevID}
	hb := ackHdr.encode()
	front, back := l.MinimumPrealloc()
	buf := bytesbuf.New(front, headerLen, back)
	copy(buf.Bytes(), hb[:])
	_ = l.Enqueue(link.NewFragment(l.LocalAddress(), f.Source, f.InterfaceID, buf))
}
