// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transfer

import "time"

// Options configures a Layer's per-peer rate control, retransmit-request
// holdoff, and inactivity/duplicate-suppression timing.
//
// See spec section 6 (Configuration surface) for the full option table.
type Options struct {
	PeerRate float64 // initial assumed per-peer transmit rate, bytes/sec

	RetransmitRequestHoldoffMultiplier float64 // scales the minimum gap before a FRAGMENT_REQ is issued
	InactivityTimeoutMultiplier        float64 // scales the drop timeout for stalled transfers

	MinimumIncomingHoldTime time.Duration // lower bound on the duplicate-absorb window after completion

	TRDecrease float64 // per-peer rate-control step: divisor on an unfavourable signal
	TRIncrease float64 // per-peer rate-control step: multiplier on a favourable signal
}

var defaultOptions = Options{
	PeerRate:                           9600,
	RetransmitRequestHoldoffMultiplier: 2,
	InactivityTimeoutMultiplier:        4,
	MinimumIncomingHoldTime:            2 * time.Second,
	TRDecrease:                         2,
	TRIncrease:                         1.1,
}

// Option mutates Options during NewLayer.
type Option func(*Options)

func WithPeerRate(bytesPerSec float64) Option {
	return func(o *Options) { o.PeerRate = bytesPerSec }
}

func WithRetransmitRequestHoldoffMultiplier(m float64) Option {
	return func(o *Options) { o.RetransmitRequestHoldoffMultiplier = m }
}

func WithInactivityTimeoutMultiplier(m float64) Option {
	return func(o *Options) { o.InactivityTimeoutMultiplier = m }
}

func WithMinimumIncomingHoldTime(d time.Duration) Option {
	return func(o *Options) { o.MinimumIncomingHoldTime = d }
}

func WithTRDecrease(d float64) Option {
	return func(o *Options) { o.TRDecrease = d }
}

func WithTRIncrease(i float64) Option {
	return func(o *Options) { o.TRIncrease = i }
}
