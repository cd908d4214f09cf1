// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package port implements the second addressing dimension above the
// transfer layer: a per-stack service registry keyed by port number, so
// several independent consumers can share the same set of links.
package port

import (
	"fmt"

	"github.com/protoserial/stack/bytesbuf"
	"github.com/protoserial/stack/event"
	"github.com/protoserial/stack/ident"
	"github.com/protoserial/stack/link"
	"github.com/protoserial/stack/transfer"
)

// Port is a service address in the range 1..255; 0 is reserved and never
// valid as a registration or destination.
type Port uint8

// headerLen is the size in bytes of the port header prepended to every
// transfer payload: destination_port, source_port, check.
const headerLen = 3

type header struct {
	Destination Port
	Source      Port
}

func (h header) checksum() byte { return byte(int(h.Destination) + int(h.Source)) }

func (h header) encode() [headerLen]byte {
	return [headerLen]byte{byte(h.Destination), byte(h.Source), h.checksum()}
}

func decodeHeader(p []byte) (h header, ok bool) {
	if len(p) < headerLen {
		return header{}, false
	}
	h = header{Destination: Port(p[0]), Source: Port(p[1])}
	if h.checksum() != p[2] {
		return header{}, false
	}
	return h, true
}

// Message is one payload delivered to a registered service.
type Message struct {
	Source      Port
	Interface   ident.Interface
	PeerAddress link.Address
	Data        *bytesbuf.Buffer
}

// service is one registered destination port.
type service struct {
	port  Port
	inbox event.Subject[Message]
}

// firstDynamicPort is the lowest port GetFreePort will hand out, leaving
// the range below it free for well-known, statically registered services.
const firstDynamicPort = 100

// Multiplexer is the port-addressing layer: it owns the service registry
// and forwards reassembled transfer-layer payloads to whichever service
// registered the destination port, silently dropping anything addressed
// to a port nobody registered.
type Multiplexer struct {
	services map[Port]*service

	transferLayer *transfer.Layer
}

// NewMultiplexer constructs a Multiplexer bound to t, subscribing to its
// ReceiveEvent so reassembled payloads are demultiplexed by port. t is a
// reference the Multiplexer does not own.
func NewMultiplexer(t *transfer.Layer) *Multiplexer {
	m := &Multiplexer{
		services:      make(map[Port]*service),
		transferLayer: t,
	}
	t.ReceiveEvent.Subscribe(func(r transfer.Received) { m.onReceive(r) })
	return m
}

// Register reserves port for the caller and returns a Subject it can
// subscribe to for inbound messages. It is an error to register port 0 or
// a port that is already registered.
func (m *Multiplexer) Register(p Port) (*event.Subject[Message], error) {
	if p == 0 {
		return nil, fmt.Errorf("port: cannot register reserved port 0")
	}
	if _, exists := m.services[p]; exists {
		return nil, fmt.Errorf("port: port %d already registered", p)
	}
	s := &service{port: p}
	m.services[p] = s
	return &s.inbox, nil
}

// Unregister releases a previously registered port.
func (m *Multiplexer) Unregister(p Port) {
	delete(m.services, p)
}

// GetFreePort returns the lowest unregistered port at or above 100,
// registers it, and returns its inbox.
func (m *Multiplexer) GetFreePort() (Port, *event.Subject[Message], error) {
	for p := Port(firstDynamicPort); p != 0; p++ {
		if _, exists := m.services[p]; !exists {
			sub, err := m.Register(p)
			return p, sub, err
		}
	}
	return 0, nil, fmt.Errorf("port: no free port available")
}

// MinimumPrealloc returns the (front, back) slack a caller should reserve
// in its own data buffer before calling Send over l, so prepending the
// port header never forces a reallocation: downstream_minimum plus this
// layer's own header size.
func (m *Multiplexer) MinimumPrealloc(l *link.Link) (front, back int) {
	df, db := m.transferLayer.MinimumPrealloc(l)
	return df + headerLen, db
}

// Send frames data with a port header and hands it to the transfer layer
// for delivery to dest over l. Both ports must be non-zero and distinct.
func (m *Multiplexer) Send(l *link.Link, dest link.Address, srcPort, dstPort Port, data *bytesbuf.Buffer, done func(ok bool)) (byte, error) {
	if dstPort == 0 {
		return 0, fmt.Errorf("port: destination port 0 is invalid")
	}
	if srcPort == 0 {
		return 0, fmt.Errorf("port: source port 0 is invalid")
	}
	if srcPort == dstPort {
		return 0, fmt.Errorf("port: source and destination ports must differ")
	}

	h := header{Destination: dstPort, Source: srcPort}
	hb := h.encode()

	framed := bytesbuf.New(headerLen, data.Len(), 0)
	copy(framed.Bytes(), data.Bytes())
	framed.PushFrontBytes(hb[:])

	return m.transferLayer.Send(l, dest, framed, done)
}

func (m *Multiplexer) onReceive(r transfer.Received) {
	if r.Data.Len() < headerLen {
		return
	}
	h, ok := decodeHeader(r.Data.Bytes())
	if !ok {
		return
	}
	svc, exists := m.services[h.Destination]
	if !exists {
		return // silently dropped: nobody registered this destination port
	}
	body := bytesbuf.NewFromBytes(r.Data.Bytes()[headerLen:])
	svc.inbox.Emit(Message{
		Source:      h.Source,
		Interface:   r.InterfaceID,
		PeerAddress: r.Source,
		Data:        body,
	})
}
