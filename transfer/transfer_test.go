// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transfer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/protoserial/stack/bytesbuf"
	"github.com/protoserial/stack/ident"
	"github.com/protoserial/stack/link"
	"github.com/protoserial/stack/transfer"
)

func newLinkPair(t *testing.T) (a, b *link.Link) {
	t.Helper()
	a = link.New(ident.New(ident.KindLoopback, "a"), link.WithLoopback(), link.WithLocalAddress(1), link.WithMaxFragmentSize(16))
	b = link.New(ident.New(ident.KindLoopback, "b"), link.WithLoopback(), link.WithLocalAddress(2), link.WithMaxFragmentSize(16))
	return a, b
}

// pumpUntil drains a's transmit queue into b and ticks both layers, up to
// maxTicks times, stopping early once both queues are quiet.
func pumpUntil(a, b *link.Link, la, lb *transfer.Layer, maxTicks int) {
	for i := 0; i < maxTicks; i++ {
		la.Tick()
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
		lb.Tick()

		for b.ReadyToSend() {
			buf, _, ok := b.PopTransmit()
			if !ok {
				break
			}
			for _, bb := range buf {
				a.PushByte(bb)
			}
		}
		a.Tick()
	}
}

// pumpWithLoss behaves like pumpUntil but drops the dropNth fragment
// (1-based, across all of a's transmissions) on the way to b, simulating a
// lost fragment on the wire, and sleeps between iterations so real-time
// retransmit/holdoff timers can elapse.
func pumpWithLoss(a, b *link.Link, la, lb *transfer.Layer, iterations int, sleep time.Duration, dropNth int) {
	sent := 0
	for i := 0; i < iterations; i++ {
		la.Tick()
		for a.ReadyToSend() {
			buf, _, ok := a.PopTransmit()
			if !ok {
				break
			}
			sent++
			if sent != dropNth {
				for _, bb := range buf {
					b.PushByte(bb)
				}
			}
		}
		b.Tick()
		lb.Tick()

		for b.ReadyToSend() {
			buf, _, ok := b.PopTransmit()
			if !ok {
				break
			}
			for _, bb := range buf {
				a.PushByte(bb)
			}
		}
		a.Tick()

		if sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

func TestSingleFragmentTransferRoundTrips(t *testing.T) {
	a, b := newLinkPair(t)
	la, lb := transfer.NewLayer(), transfer.NewLayer()
	require.NoError(t, la.Attach(a))
	require.NoError(t, lb.Attach(b))

	var received transfer.Received
	lb.ReceiveEvent.Subscribe(func(r transfer.Received) { received = r })

	payload := bytesbuf.NewFromBytes([]byte("ping"))
	done := false
	_, err := la.Send(a, 2, payload, func(ok bool) { done = ok })
	require.NoError(t, err)

	pumpUntil(a, b, la, lb, 8)

	require.NotNil(t, received.Data)
	require.Equal(t, "ping", string(received.Data.Bytes()))
	require.True(t, done, "sender should observe acknowledgement")
}

func TestMultiFragmentTransferReassembles(t *testing.T) {
	a, b := newLinkPair(t)
	la, lb := transfer.NewLayer(), transfer.NewLayer()
	require.NoError(t, la.Attach(a))
	require.NoError(t, lb.Attach(b))

	var received transfer.Received
	lb.ReceiveEvent.Subscribe(func(r transfer.Received) { received = r })

	payload := bytesbuf.NewFromBytes([]byte("this payload is longer than one link fragment can carry"))
	_, err := la.Send(a, 2, payload, nil)
	require.NoError(t, err)

	pumpUntil(a, b, la, lb, 32)

	require.NotNil(t, received.Data)
	require.Equal(t, payload.Bytes(), received.Data.Bytes())
}

func TestIDAllocatorSkipsZeroOnWraparound(t *testing.T) {
	a, _ := newLinkPair(t)
	la := transfer.NewLayer()
	require.NoError(t, la.Attach(a))

	var last byte
	for i := 0; i < 256; i++ {
		id, err := la.Send(a, 2, bytesbuf.NewFromBytes([]byte("x")), nil)
		require.NoError(t, err)
		require.NotEqual(t, byte(0), id)
		last = id
	}
	_ = last
}

// TestLostFirstFragmentRetransmits exercises a single-fragment transfer
// whose only fragment is dropped once on the wire: the sender's own
// retransmit timeout must fire and resend it, completing the transfer.
func TestLostFirstFragmentRetransmits(t *testing.T) {
	a, b := newLinkPair(t)
	la, lb := transfer.NewLayer(), transfer.NewLayer()
	require.NoError(t, la.Attach(a))
	require.NoError(t, lb.Attach(b))

	var received transfer.Received
	lb.ReceiveEvent.Subscribe(func(r transfer.Received) { received = r })

	done := false
	_, err := la.Send(a, 2, bytesbuf.NewFromBytes([]byte("ping")), func(ok bool) { done = ok })
	require.NoError(t, err)

	pumpWithLoss(a, b, la, lb, 60, 3*time.Millisecond, 1)

	require.NotNil(t, received.Data, "sender should have retransmitted the dropped fragment")
	require.Equal(t, "ping", string(received.Data.Bytes()))
	require.True(t, done)
}

// TestLostMiddleFragmentTriggersRequestAndRetransmit exercises a
// three-fragment transfer whose middle fragment is dropped: the receiver
// must issue a FRAGMENT_REQ for it once its stall holdoff elapses, and the
// sender must resume transmission at the requested index rather than
// restarting the whole transfer.
func TestLostMiddleFragmentTriggersRequestAndRetransmit(t *testing.T) {
	a, b := newLinkPair(t)
	// Slow the sender's own assumed peer rate so its unprompted
	// retransmit-from-1 timeout cannot race ahead of the receiver's
	// FRAGMENT_REQ — this test wants to exercise the request path.
	la := transfer.NewLayer(transfer.WithPeerRate(100))
	lb := transfer.NewLayer()
	require.NoError(t, la.Attach(a))
	require.NoError(t, lb.Attach(b))

	var received transfer.Received
	lb.ReceiveEvent.Subscribe(func(r transfer.Received) { received = r })

	payload := bytesbuf.NewFromBytes([]byte("ABCDEFGHIJKLMNOPQRSTUVWXY")) // 25 bytes -> 3 fragments at 10/fragment
	done := false
	_, err := la.Send(a, 2, payload, func(ok bool) { done = ok })
	require.NoError(t, err)

	pumpWithLoss(a, b, la, lb, 80, 2*time.Millisecond, 2)

	require.NotNil(t, received.Data, "receiver should have requested and received the dropped middle fragment")
	require.Equal(t, payload.Bytes(), received.Data.Bytes())
	require.True(t, done)
}

// TestDuplicateFragmentAfterCompletionIsSuppressed exercises testable
// property 3: re-arrival of a completed transfer's fragment within the
// hold window must not re-emit a receive event.
func TestDuplicateFragmentAfterCompletionIsSuppressed(t *testing.T) {
	a, b := newLinkPair(t)
	la, lb := transfer.NewLayer(), transfer.NewLayer()
	require.NoError(t, la.Attach(a))
	require.NoError(t, lb.Attach(b))

	receiveCount := 0
	lb.ReceiveEvent.Subscribe(func(transfer.Received) { receiveCount++ })

	_, err := la.Send(a, 2, bytesbuf.NewFromBytes([]byte("ping")), nil)
	require.NoError(t, err)

	var wire []byte
	for i := 0; i < 8 && wire == nil; i++ {
		la.Tick()
		for a.ReadyToSend() {
			buf, _, ok := a.PopTransmit()
			if !ok {
				break
			}
			wire = append([]byte(nil), buf...)
			for _, bb := range buf {
				b.PushByte(bb)
			}
		}
		b.Tick()
		lb.Tick()

		for b.ReadyToSend() {
			buf, _, ok := b.PopTransmit()
			if !ok {
				break
			}
			for _, bb := range buf {
				a.PushByte(bb)
			}
		}
		a.Tick()
	}
	require.Equal(t, 1, receiveCount)
	require.NotNil(t, wire, "expected to capture the transmitted wire frame")

	// Replay the exact same wire frame at b, simulating the network
	// redelivering a fragment after its transfer already completed.
	for _, bb := range wire {
		b.PushByte(bb)
	}
	b.Tick()
	lb.Tick()

	require.Equal(t, 1, receiveCount, "duplicate re-arrival within the hold window must not re-emit receive")
}
