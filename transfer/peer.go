// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transfer

import (
	"time"

	"github.com/protoserial/stack/link"
)

// rateMin and rateMax bound the estimated peer throughput in bytes/sec, so
// a few timeouts in a row can't collapse the controller to zero or let a
// burst of acks run it away to an unrealistic ceiling.
const (
	rateMin = 16.0
	rateMax = 1 << 20
)

// peer tracks retransmission and pacing state for one (interface, address)
// pair: the data this transfer layer needs to decide how long to wait
// before declaring a transfer lost and asking for a retransmit.
type peer struct {
	Interface string
	Address   link.Address

	// rate is the estimated useful byte rate to this peer, updated from
	// bordering-fragment RTT samples. It starts at the configured initial
	// peer rate and adapts from there.
	rate float64

	trIncrease float64 // multiplicative step applied on a favourable sample
	trDecrease float64 // divisor applied on an unfavourable sample or timeout

	lastRTT time.Duration
}

func newPeer(ifaceName string, addr link.Address, initialRate, trIncrease, trDecrease float64) *peer {
	if initialRate <= 0 {
		initialRate = rateMin
	}
	if trIncrease <= 1 {
		trIncrease = 1.1
	}
	if trDecrease <= 1 {
		trDecrease = 2
	}
	return &peer{
		Interface:  ifaceName,
		Address:    addr,
		rate:       initialRate,
		trIncrease: trIncrease,
		trDecrease: trDecrease,
	}
}

// SampleRTT folds one bordering-fragment round-trip sample into the rate
// estimate: a faster-than-expected round trip nudges the rate up
// multiplicatively, a slower trip backs it off, matching the asymmetric
// back-off a window-free peer controller needs.
func (p *peer) SampleRTT(rtt time.Duration, fragmentBytes int) {
	p.lastRTT = rtt
	if rtt <= 0 {
		return
	}
	observed := float64(fragmentBytes) / rtt.Seconds()
	if observed > p.rate {
		p.rate *= p.trIncrease
	} else {
		p.rate /= p.trDecrease
	}
	p.clamp()
}

// OnTimeout is called when a transfer to this peer had to be retried; it
// backs the rate estimate off hard so the next retransmit timeout is more
// conservative.
func (p *peer) OnTimeout() {
	p.rate /= p.trDecrease
	p.clamp()
}

func (p *peer) clamp() {
	if p.rate < rateMin {
		p.rate = rateMin
	}
	if p.rate > rateMax {
		p.rate = rateMax
	}
}

// RetransmitTimeout derives a timeout for a fragment of the given size from
// the current rate estimate, with a floor so a very fast estimated rate
// doesn't produce an unreasonably tight timeout.
func (p *peer) RetransmitTimeout(fragmentBytes int) time.Duration {
	secs := float64(fragmentBytes) / p.rate
	d := time.Duration(secs * float64(time.Second))
	const floor = 20 * time.Millisecond
	if d < floor {
		return floor
	}
	return d
}
