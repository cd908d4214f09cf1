// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package link

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/protoserial/stack/internal/bo"
)

// FooterKind selects the integrity hash appended after the payload.
type FooterKind uint8

const (
	FooterCRC16 FooterKind = iota
	FooterCRC32
)

// Options configures a Link's framing, addressing, and buffering behavior.
//
// See spec section 6 (Configuration surface) for the full option table.
type Options struct {
	LocalAddress     Address
	BroadcastAddress Address // 0 disables broadcast matching

	MaxQueueSize    int
	MaxFragmentSize int // upper bound on framed payload bytes, 1..255
	RxBufferSize    int

	TxRate float64 // nominal bits/sec, drives timeout math upstream
	RxRate float64

	FooterKind  FooterKind
	ByteOrder   binary.ByteOrder // footer encoding order on the wire
	PreambleByte byte
	PreambleLen  int

	Logger *logrus.Logger
}

var defaultOptions = Options{
	MaxQueueSize:    16,
	MaxFragmentSize: 64,
	RxBufferSize:    1024,
	TxRate:          9600,
	RxRate:          9600,
	FooterKind:      FooterCRC16,
	ByteOrder:       binary.BigEndian,
	PreambleByte:    0x55,
	PreambleLen:     2,
	Logger:          logrus.StandardLogger(),
}

// Option mutates Options during New.
type Option func(*Options)

func WithLocalAddress(a Address) Option {
	return func(o *Options) { o.LocalAddress = a }
}

func WithBroadcastAddress(a Address) Option {
	return func(o *Options) { o.BroadcastAddress = a }
}

func WithMaxQueueSize(n int) Option {
	return func(o *Options) { o.MaxQueueSize = n }
}

func WithMaxFragmentSize(n int) Option {
	return func(o *Options) { o.MaxFragmentSize = n }
}

func WithRxBufferSize(n int) Option {
	return func(o *Options) { o.RxBufferSize = n }
}

func WithRates(tx, rx float64) Option {
	return func(o *Options) { o.TxRate = tx; o.RxRate = rx }
}

func WithFooterKind(k FooterKind) Option {
	return func(o *Options) { o.FooterKind = k }
}

func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *Options) { o.ByteOrder = order }
}

func WithPreamble(b byte, length int) Option {
	return func(o *Options) { o.PreambleByte = b; o.PreambleLen = length }
}

func WithLogger(l *logrus.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Per-transport presets, analogous to the teacher's net-kind helpers: each
// picks byte order and buffering defaults appropriate to the physical
// transport a Link will be driven by. The concrete transport itself
// remains external to this package.

// WithUART applies defaults suited to a point-to-point UART: native byte
// order for the footer (no network involved) and a generous rx buffer to
// absorb ISR jitter.
func WithUART() Option {
	return func(o *Options) {
		o.ByteOrder = bo.Native()
		if o.RxBufferSize < 512 {
			o.RxBufferSize = 512
		}
	}
}

// WithRS485 applies defaults suited to a shared multi-drop RS-485 bus:
// native footer byte order as for UART plus a larger transmit queue since
// collisions are more likely to force retransmits. It does not raise the
// rx buffer size.
func WithRS485() Option {
	return func(o *Options) {
		o.ByteOrder = bo.Native()
		if o.MaxQueueSize < 32 {
			o.MaxQueueSize = 32
		}
	}
}

// WithUSBCDC applies defaults suited to a USB-CDC virtual serial port:
// bigger fragments are cheap since the underlying transport is already
// packetized by USB.
func WithUSBCDC() Option {
	return func(o *Options) {
		o.ByteOrder = bo.Native()
		if o.MaxFragmentSize < 128 {
			o.MaxFragmentSize = 128
		}
	}
}

// WithLoopback applies defaults suited to in-process loopback testing:
// native byte order and a 256-entry transmit queue; buffer sizes are left
// as configured.
func WithLoopback() Option {
	return func(o *Options) {
		o.ByteOrder = bo.Native()
		o.MaxQueueSize = 256
	}
}
