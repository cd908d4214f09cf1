// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package port_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/protoserial/stack/bytesbuf"
	"github.com/protoserial/stack/ident"
	"github.com/protoserial/stack/link"
	"github.com/protoserial/stack/port"
	"github.com/protoserial/stack/transfer"
)

func newMux(t *testing.T) (*link.Link, *transfer.Layer, *port.Multiplexer) {
	t.Helper()
	l := link.New(ident.New(ident.KindLoopback, "m"), link.WithLoopback(), link.WithLocalAddress(1), link.WithMaxFragmentSize(32))
	tl := transfer.NewLayer()
	require.NoError(t, tl.Attach(l))
	return l, tl, port.NewMultiplexer(tl)
}

func TestRegisterRejectsPortZero(t *testing.T) {
	_, _, m := newMux(t)
	_, err := m.Register(0)
	require.Error(t, err)
}

func TestRegisterRejectsDuplicatePort(t *testing.T) {
	_, _, m := newMux(t)
	_, err := m.Register(7)
	require.NoError(t, err)
	_, err = m.Register(7)
	require.Error(t, err)
}

func TestGetFreePortStartsAtOneHundred(t *testing.T) {
	_, _, m := newMux(t)
	p, _, err := m.GetFreePort()
	require.NoError(t, err)
	require.GreaterOrEqual(t, int(p), 100)
}

func TestUnregisteredDestinationIsDropped(t *testing.T) {
	a := link.New(ident.New(ident.KindLoopback, "a"), link.WithLoopback(), link.WithLocalAddress(1), link.WithMaxFragmentSize(32))
	b := link.New(ident.New(ident.KindLoopback, "b"), link.WithLoopback(), link.WithLocalAddress(2), link.WithMaxFragmentSize(32))
	ta, tb := transfer.NewLayer(), transfer.NewLayer()
	require.NoError(t, ta.Attach(a))
	require.NoError(t, tb.Attach(b))
	mb := port.NewMultiplexer(tb)

	delivered := false
	sub, err := mb.Register(6)
	require.NoError(t, err)
	sub.Subscribe(func(port.Message) { delivered = true })

	ma := port.NewMultiplexer(ta)
	_, sendErr := ma.Send(a, 2, 1, 5, bytesbuf.NewFromBytes([]byte("hi")), nil)
	require.NoError(t, sendErr)

	for i := 0; i < 8; i++ {
		ta.Tick()
		for a.ReadyToSend() {
			buf, _, ok := a.PopTransmit()
			if !ok {
				break
			}
			for _, bb := range buf {
				b.PushByte(bb)
			}
		}
		b.Tick()
		tb.Tick()
	}

	require.False(t, delivered, "message addressed to unregistered port 5 must not reach any service")
}

func TestSendRejectsInvalidPorts(t *testing.T) {
	a, _, m := newMux(t)

	_, err := m.Send(a, 2, 7, 0, bytesbuf.NewFromBytes([]byte("x")), nil)
	require.Error(t, err, "destination port 0 must be rejected")

	_, err = m.Send(a, 2, 0, 7, bytesbuf.NewFromBytes([]byte("x")), nil)
	require.Error(t, err, "source port 0 must be rejected")

	_, err = m.Send(a, 2, 7, 7, bytesbuf.NewFromBytes([]byte("x")), nil)
	require.Error(t, err, "source and destination ports must differ")
}

func TestAttachRejectsDuplicateInterface(t *testing.T) {
	l := link.New(ident.New(ident.KindLoopback, "dup"), link.WithLoopback(), link.WithLocalAddress(1), link.WithMaxFragmentSize(32))
	tl := transfer.NewLayer()
	require.NoError(t, tl.Attach(l))
	require.Error(t, tl.Attach(l), "attaching the same interface twice must fail")
}
